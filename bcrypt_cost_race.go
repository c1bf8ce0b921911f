//go:build race

package auth

func passwordHashCost() int {
	// race builds run the full suite under strict timeouts
	return MinPasswordCost
}
