package links

import (
	"context"
	"errors"
	"strings"
)

type lookupKind int

const (
	lookupNotFound lookupKind = iota
	lookupByID
	lookupByAlias
)

func (k lookupKind) String() string {
	switch k {
	case lookupByID:
		return "id"
	case lookupByAlias:
		return "alias"
	default:
		return "not_found"
	}
}

type lookupResult struct {
	kind lookupKind
	link *Link
}

// lookup resolves a public code to a live link. A code that decodes is tried
// as a generated ID first, then as an alias; one that does not decode can only
// be an alias. Expired links are reported as not found.
func (s *Service) lookup(ctx context.Context, code string) (lookupResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return lookupResult{kind: lookupNotFound}, nil
	}

	var (
		link *Link
		err  error
	)
	if id, decodeErr := s.codec.Decode(code); decodeErr != nil {
		link, err = s.linkRepo.FindByCustomCode(ctx, code)
	} else {
		link, err = s.linkRepo.FindByIDOrCustomCode(ctx, id, code)
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return lookupResult{kind: lookupNotFound}, nil
	case err != nil:
		return lookupResult{}, storageFailure(err)
	case link == nil || link.ExpiredAt(s.now()):
		return lookupResult{kind: lookupNotFound}, nil
	}

	if link.CustomCode != "" {
		return lookupResult{kind: lookupByAlias, link: link}, nil
	}
	return lookupResult{kind: lookupByID, link: link}, nil
}
