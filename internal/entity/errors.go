package entity

import "github.com/dirctl/ldapdm/internal/direrr"

var errNotFound = direrr.ErrNotFound
