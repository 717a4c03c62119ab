package service

import "errors"

// Service-level sentinel errors. The HTTP layer maps these onto the two
// wire error kinds the protocol allows.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrProfileAssigned    = errors.New("access token already has a profile assigned")
	ErrNotOwned           = errors.New("profile does not belong to this account")
	ErrBanned             = errors.New("account is banned")
	ErrInvalidImage       = errors.New("invalid texture image")
	ErrTextureTooLarge    = errors.New("texture exceeds the size limit")
	ErrTextureProcessing  = errors.New("failed to process texture")
)
