package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"spicywod/internal/auth"
	"spicywod/internal/models"

	"github.com/google/uuid"
)

// dummySalt keeps the unknown-email path as slow as a real password check.
const dummySalt = "00000000000000000000000000000000"

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func GetUserByID(db *sql.DB, userID string) (*models.User, error) {
	return getUser(db, "id", userID)
}

func GetUserByEmail(db *sql.DB, email string) (*models.User, error) {
	return getUser(db, "email", normalizeEmail(email))
}

func getUser(db *sql.DB, column, value string) (*models.User, error) {
	user := &models.User{}
	query := fmt.Sprintf(`
		SELECT id, email, hashed_password, password_salt, password_reset_token, password_reset_expires, joined_at
		FROM users
		WHERE %s = ?
	`, column)

	var resetToken sql.NullString
	var resetExpires sql.NullTime
	err := db.QueryRow(query, value).Scan(
		&user.ID,
		&user.Email,
		&user.HashedPassword,
		&user.PasswordSalt,
		&resetToken,
		&resetExpires,
		&user.JoinedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	if resetToken.Valid {
		user.PasswordResetToken = &resetToken.String
	}
	if resetExpires.Valid {
		user.PasswordResetExpires = &resetExpires.Time
	}

	return user, nil
}

// CreateUser stores a new athlete. The password must already satisfy the
// signup policy. A taken email yields auth.ErrUserExists.
func CreateUser(db *sql.DB, email, password string) (*models.User, error) {
	email = normalizeEmail(email)

	var exists bool
	err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)", email).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, auth.ErrUserExists
	}

	salt, err := auth.GenerateSalt()
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:             uuid.NewString(),
		Email:          email,
		HashedPassword: auth.HashPassword(password, salt),
		PasswordSalt:   salt,
		JoinedAt:       time.Now().UTC(),
	}

	query := `
		INSERT INTO users (id, email, hashed_password, password_salt, joined_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err = db.Exec(query, user.ID, user.Email, user.HashedPassword, user.PasswordSalt, user.JoinedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, auth.ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// AuthenticateUser returns auth.ErrInvalidCredentials for an unknown email and
// for a wrong password alike.
func AuthenticateUser(db *sql.DB, email, password string) (*models.User, error) {
	user, err := GetUserByEmail(db, email)
	if err != nil {
		if isNotFound(err) {
			auth.VerifyPassword(password, dummySalt, "")
			return nil, auth.ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.VerifyPassword(password, user.PasswordSalt, user.HashedPassword) {
		return nil, auth.ErrInvalidCredentials
	}

	return user, nil
}

// UpdatePassword replaces the user's salt and hash and clears any reset token.
func UpdatePassword(db *sql.DB, userID, newPassword string) error {
	salt, err := auth.GenerateSalt()
	if err != nil {
		return err
	}

	result, err := db.Exec(`
		UPDATE users
		SET hashed_password = ?, password_salt = ?, password_reset_token = NULL, password_reset_expires = NULL
		WHERE id = ?
	`, auth.HashPassword(newPassword, salt), salt, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check password update: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user %w", ErrNotFound)
	}

	return nil
}
