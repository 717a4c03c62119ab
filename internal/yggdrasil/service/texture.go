package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/blob"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/domain"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/store"
	"github.com/element-skin/yggdrasil/pkg/cryptox"
	"github.com/element-skin/yggdrasil/pkg/slogx"
	"github.com/element-skin/yggdrasil/pkg/texturex"
)

// TextureService handles player texture uploads and removals. Texture bytes
// live in a content-addressed blob store; profiles only carry the hash.
type TextureService struct {
	Store    store.Store
	Blobs    blob.Store
	Settings *SettingsService
}

func NewTextureService(st store.Store, blobs blob.Store, settings *SettingsService) *TextureService {
	return &TextureService{Store: st, Blobs: blobs, Settings: settings}
}

// authorize checks that the access token exists and that the profile it is
// acting on belongs to the same account.
func (s *TextureService) authorize(ctx context.Context, accessToken, profileID string) (domain.PlayerProfile, error) {
	t, err := s.Store.Tokens().GetToken(ctx, accessToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.PlayerProfile{}, ErrInvalidToken
		}
		return domain.PlayerProfile{}, err
	}
	if t.Expired(time.Now()) {
		return domain.PlayerProfile{}, ErrInvalidToken
	}

	p, err := s.Store.Profiles().GetProfileByID(ctx, cryptox.CanonicalUUID(profileID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.PlayerProfile{}, ErrNotOwned
		}
		return domain.PlayerProfile{}, err
	}
	if p.UserID != t.UserID {
		return domain.PlayerProfile{}, ErrNotOwned
	}
	return p, nil
}

func parseTextureType(s string) (texturex.TextureType, error) {
	switch s {
	case "skin":
		return texturex.TypeSkin, nil
	case "cape":
		return texturex.TypeCape, nil
	default:
		return "", fmt.Errorf("%w: unknown texture type %q", ErrInvalidImage, s)
	}
}

// Upload validates, normalizes and stores a texture, then points the
// profile at the new content hash.
func (s *TextureService) Upload(ctx context.Context, accessToken, profileID, textureType, model string, data []byte) error {
	log := slogx.FromContext(ctx)

	p, err := s.authorize(ctx, accessToken, profileID)
	if err != nil {
		return err
	}

	tt, err := parseTextureType(textureType)
	if err != nil {
		return err
	}

	limit, err := s.Settings.MaxTextureSize(ctx)
	if err != nil {
		return err
	}
	if int64(len(data)) > limit {
		return ErrTextureTooLarge
	}

	encoded, hash, _, err := texturex.Normalize(tt, data)
	if err != nil {
		// Decode and dimension failures carry no internal detail to the
		// client beyond the invalid-image kind.
		return fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	// Storage and db failures stay behind the generic processing sentinel;
	// the client never sees backend detail.
	if err := s.Blobs.Save(ctx, hash, encoded); err != nil {
		log.Error("texture blob write failed", slog.Any("error", err))
		return fmt.Errorf("%w: %v", ErrTextureProcessing, err)
	}

	switch tt {
	case texturex.TypeSkin:
		m := domain.ModelDefault
		if model == string(domain.ModelSlim) {
			m = domain.ModelSlim
		}
		err = s.Store.Profiles().SetSkin(ctx, p.ID, &hash, m)
	case texturex.TypeCape:
		err = s.Store.Profiles().SetCape(ctx, p.ID, &hash)
	}
	if err != nil {
		log.Error("texture profile update failed", slog.Any("error", err))
		return fmt.Errorf("%w: %v", ErrTextureProcessing, err)
	}

	log.Info("texture uploaded",
		slog.String("profile", p.Name),
		slog.String("type", textureType),
		slog.String("hash", hash),
	)
	return nil
}

// Delete clears a profile's texture reference. The blob itself stays: the
// store is content-addressed and another profile may reference the same
// hash.
func (s *TextureService) Delete(ctx context.Context, accessToken, profileID, textureType string) error {
	p, err := s.authorize(ctx, accessToken, profileID)
	if err != nil {
		return err
	}

	tt, err := parseTextureType(textureType)
	if err != nil {
		return err
	}

	switch tt {
	case texturex.TypeSkin:
		return s.Store.Profiles().SetSkin(ctx, p.ID, nil, p.Model)
	default:
		return s.Store.Profiles().SetCape(ctx, p.ID, nil)
	}
}

// Read returns the stored bytes for a texture hash.
func (s *TextureService) Read(ctx context.Context, hash string) ([]byte, error) {
	return s.Blobs.Read(ctx, hash)
}
