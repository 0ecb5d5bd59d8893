package scrape

import "errors"

// Upstream failure codes.
const (
	CodeBadCredentials = "AUTH_BAD_CREDENTIALS"
	CodeRobotNotFound  = "ROBOT_NOT_FOUND"
	CodeRunFailed      = "RUN_FAILED"
	CodeRunTimeout     = "RUN_TIMEOUT"
)

var (
	ErrBadCredentials = errors.New("scrape: credentials rejected")
	ErrRobotNotFound  = errors.New("scrape: robot or run not found")
	ErrRunFailed      = errors.New("scrape: run failed upstream")
	ErrRunTimeout     = errors.New("scrape: run did not finish in time")
	ErrNotConfigured  = errors.New("scrape: api key or base url missing")
	ErrDownload       = errors.New("scrape: captured data download failed")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrBadCredentials, CodeBadCredentials},
	{ErrNotConfigured, CodeBadCredentials},
	{ErrRobotNotFound, CodeRobotNotFound},
	{ErrRunFailed, CodeRunFailed},
	{ErrRunTimeout, CodeRunTimeout},
	{ErrDownload, CodeRunFailed},
}

// Code returns the failure code carried by err, or "" for other errors.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}
