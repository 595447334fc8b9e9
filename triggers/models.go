package triggers

import (
	"regexp"
	"strings"

	"github.com/jonas747/engage/common"
)

type TriggerKind int16

const (
	KindExact TriggerKind = iota
	KindPattern
)

const (
	MaxPhraseLength   = 200
	MaxResponseLength = 2000
)

// Trigger maps a phrase in guild chat to a canned response
type Trigger struct {
	GuildID int64
	LocalID int64

	Kind     TriggerKind
	Phrase   string
	Response string

	CaseSensitive bool

	compiled *regexp.Regexp
}

// Validate checks the trigger, compiling pattern kinds. Invalid patterns are
// rejected here so matching never sees one.
func (t *Trigger) Validate() error {
	if t.Phrase == "" {
		return common.NewValidationError("phrase", "cannot be empty")
	}

	if len(t.Phrase) > MaxPhraseLength {
		return common.NewValidationError("phrase", "cannot be longer than %d characters", MaxPhraseLength)
	}

	if t.Response == "" {
		return common.NewValidationError("response", "cannot be empty")
	}

	if len(t.Response) > MaxResponseLength {
		return common.NewValidationError("response", "cannot be longer than %d characters", MaxResponseLength)
	}

	switch t.Kind {
	case KindExact:
	case KindPattern:
		_, err := t.pattern()
		if err != nil {
			return common.NewValidationError("phrase", "invalid pattern: %s", err)
		}
	default:
		return common.NewValidationError("kind", "unknown trigger kind %d", t.Kind)
	}

	return nil
}

func (t *Trigger) pattern() (*regexp.Regexp, error) {
	if t.compiled != nil {
		return t.compiled, nil
	}

	expr := t.Phrase
	if !t.CaseSensitive {
		expr = "(?i)" + expr
	}

	compiled, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}

	t.compiled = compiled
	return compiled, nil
}

// Matches reports whether the message content trips the trigger
func (t *Trigger) Matches(content string) bool {
	switch t.Kind {
	case KindExact:
		if t.CaseSensitive {
			return content == t.Phrase
		}

		return strings.EqualFold(content, t.Phrase)
	case KindPattern:
		compiled, err := t.pattern()
		if err != nil {
			// rejected at write time, a stored trigger never hits this
			return false
		}

		return compiled.MatchString(content)
	}

	return false
}
