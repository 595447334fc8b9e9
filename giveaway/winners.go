package giveaway

import "math/rand"

// PickWinners draws numWinners distinct entrants uniformly at random. With
// fewer entrants than requested winners everyone wins.
func PickWinners(entrants []int64, numWinners int) []int64 {
	if numWinners > len(entrants) {
		numWinners = len(entrants)
	}

	winners := make([]int64, 0, numWinners)

	pool := make([]int64, len(entrants))
	copy(pool, entrants)

	for i := 0; i < numWinners; i++ {
		winnerI := rand.Intn(len(pool))
		winners = append(winners, pool[winnerI])

		pool[winnerI] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
	}

	return winners
}
