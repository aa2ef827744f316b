package utils

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dengue-gen/denguegen-backend/internal/logger"
)

// AuthInput is the normalized body of an auth request.
type AuthInput struct {
	Email    string
	Password string
	Name     string
}

func NormalizeAuthInput(in *AuthInput) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
}

// InputValidation checks an auth request for the given flow ("registration" or "login").
func InputValidation(flow string, in AuthInput, log *logger.Logger) error {
	switch strings.ToLower(strings.TrimSpace(flow)) {
	case "registration":
		if in.Name == "" {
			log.Warn("Name is empty, cannot register")
			return fmt.Errorf("o nome é obrigatório")
		}
		fallthrough
	case "login":
		if in.Email == "" {
			log.Warn("Email is empty, cannot proceed")
			return fmt.Errorf("o e-mail é obrigatório")
		}
		if !strings.Contains(in.Email, "@") {
			log.Warn("Email is malformed, cannot proceed", "email", in.Email)
			return fmt.Errorf("e-mail inválido")
		}
		if in.Password == "" {
			log.Warn("Password is empty, cannot proceed")
			return fmt.Errorf("a senha é obrigatória")
		}
		return nil
	default:
		log.Warn("flow string is invalid, needs to be either 'registration' or 'login'", "flow", flow)
		return fmt.Errorf("invalid validation flow: %q", flow)
	}
}

func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
