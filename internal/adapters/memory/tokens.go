package memory

import (
	"github.com/dkeye/livestage/internal/core"
	"github.com/dkeye/livestage/internal/domain"
)

// AdmittingTokens wraps a media token issuer and connects the grantee to the
// directory as soon as a token is minted. With no media service in the loop
// this stands in for the client connecting with its token.
type AdmittingTokens struct {
	core.MediaTokenIssuer
	Directory *Directory
}

func NewAdmittingTokens(dir *Directory, next core.MediaTokenIssuer) *AdmittingTokens {
	return &AdmittingTokens{MediaTokenIssuer: next, Directory: dir}
}

func (a *AdmittingTokens) MediaToken(g core.MediaGrant) (string, error) {
	token, err := a.MediaTokenIssuer.MediaToken(g)
	if err != nil {
		return "", err
	}
	a.Directory.Connect(g.Room, domain.Participant{
		Identity:   g.Identity,
		Name:       g.Name,
		Permission: g.Permission,
	})
	return token, nil
}
