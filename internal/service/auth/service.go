package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/velmark/draftline/internal/lib/logger/sl"
	"github.com/velmark/draftline/internal/models"
	"github.com/velmark/draftline/internal/service"
	"github.com/velmark/draftline/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

type Auth struct {
	log           *slog.Logger
	editorStorage EditorStorage
	jwtMaker      jwtMaker
	rootPassHash  []byte
	tokenTTL      time.Duration
}

type jwtMaker interface {
	NewToken(editor models.Editor, duration time.Duration) (string, error)
}

type EditorStorage interface {
	EditorByLogin(ctx context.Context, login string) (models.Editor, error)
}

// New returns new instance of authentication service
func New(
	log *slog.Logger,
	editorStorage EditorStorage,
	jwtMaker jwtMaker,
	rootPassHash []byte,
	tokenTTL time.Duration,
) *Auth {
	return &Auth{
		log:           log,
		editorStorage: editorStorage,
		jwtMaker:      jwtMaker,
		rootPassHash:  rootPassHash,
		tokenTTL:      tokenTTL,
	}
}

// Login authenticates the editor (root included) and issues
// a token carrying the editor's role.
//
// Unknown logins and wrong passwords are indistinguishable
// to the caller: both fail with ErrInvalidCredentials.
func (a *Auth) Login(ctx context.Context, login string, password string) (string, error) {
	const op = "Auth.Login"

	log := a.log.With(
		slog.String("op", op),
		slog.String("editorname", login),
	)

	log.Info("attempting to login")

	editor, err := a.identity(ctx, login)
	if err != nil {
		if errors.Is(err, storage.ErrEditorNotFound) {
			log.Warn("editor not found", sl.Err(err))

			return "", fmt.Errorf("%s: %w", op, service.ErrInvalidCredentials)
		}

		log.Error("failed to get editor", sl.Err(err))

		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(editor.PassHash, []byte(password)); err != nil {
		log.Info("invalid credentials", sl.Err(err))

		return "", fmt.Errorf("%s: %w", op, service.ErrInvalidCredentials)
	}

	token, err := a.jwtMaker.NewToken(editor, a.tokenTTL)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))

		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("logged in successfully", slog.String("role", string(editor.Role())))

	return token, nil
}

// identity resolves login to an editor. Root is not kept in
// storage; its identity is synthesized from the configured
// password hash.
func (a *Auth) identity(ctx context.Context, login string) (models.Editor, error) {
	if login == models.RootLogin {
		return models.Editor{
			ID:       models.RootID,
			Login:    models.RootLogin,
			PassHash: a.rootPassHash,
		}, nil
	}

	return a.editorStorage.EditorByLogin(ctx, login)
}
