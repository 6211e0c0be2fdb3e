package nexauth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
)

// CreateAccount registers a new user. The email is stored exactly as
// submitted (trimmed, casing preserved) and the password is hashed
// with argon2id before it reaches the provider.
func (e *Engine) CreateAccount(ctx context.Context, input CreateAccountInput) (UserRecord, error) {
	if e == nil {
		return UserRecord{}, ErrEngineNotReady
	}

	email := normalizeEmail(input.Email)
	if err := validateAccountInput(input, email, e.config.Password.MinLength); err != nil {
		e.emitAudit(ctx, auditEventAccountCreated, false, "", email, "", err, nil)
		return UserRecord{}, err
	}

	hash, err := e.passwordHash.Hash(input.Password)
	if err != nil {
		return UserRecord{}, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	record, err := e.userProvider.CreateUser(ctx, CreateUserInput{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, ErrProviderDuplicateEmail) {
			e.metricInc(MetricAccountDuplicate)
			e.emitAudit(ctx, auditEventAccountDuplicate, false, "", email, "", ErrEmailTaken, nil)
			return UserRecord{}, ErrEmailTaken
		}
		e.emitAudit(ctx, auditEventAccountCreated, false, "", email, "", ErrStoreUnavailable, nil)
		return UserRecord{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricAccountCreated)
	e.emitAudit(ctx, auditEventAccountCreated, true, record.UserID, email, "", nil, nil)

	return record, nil
}

func validateAccountInput(input CreateAccountInput, email string, minPassword int) error {
	if input.FirstName == "" || input.LastName == "" {
		return fmt.Errorf("%w: first and last name required", ErrInvalidInput)
	}
	if email == "" {
		return fmt.Errorf("%w: email required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	if len(input.Password) < minPassword {
		return fmt.Errorf("%w: password must be at least %d characters", ErrPasswordPolicy, minPassword)
	}
	return nil
}
