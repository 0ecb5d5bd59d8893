package ingest

import (
	"errors"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/scrape"
)

// Failure codes owned by ingestion. Upstream scrape codes come from scrape.Code.
const (
	CodeSchemaInvalid = "E_SCHEMA_INVALID"
	CodeDBUpsert      = "E_DB_UPSERT"
)

var (
	ErrSchemaInvalid = errors.New("invalid ingestion request")
	ErrDBUpsert      = errors.New("storage write failed")
	ErrNotFound      = errors.New("not found")
)

// CodeOf maps any wrapped error to its failure code, or "" when unclassified.
func CodeOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSchemaInvalid):
		return CodeSchemaInvalid
	case errors.Is(err, ErrDBUpsert):
		return CodeDBUpsert
	}
	return scrape.Code(err)
}
