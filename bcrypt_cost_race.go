//go:build race

package membership

import "golang.org/x/crypto/bcrypt"

func passwordHashCost() int {
	// race builds are an order of magnitude slower
	return bcrypt.DefaultCost
}
