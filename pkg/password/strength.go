package password

import (
	"github.com/nbutton23/zxcvbn-go"
)

// maxScoredLength caps how much of a password is fed to the estimator;
// its cost grows quickly with length.
const maxScoredLength = 50

// Strength scores passwords with zxcvbn.
type Strength struct{}

func (Strength) Score(password string, userInputs []string) int {
	if len(password) > maxScoredLength {
		password = password[:maxScoredLength]
	}
	return zxcvbn.PasswordStrength(password, userInputs).Score
}
