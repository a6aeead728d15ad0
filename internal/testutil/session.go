package testutil

import "github.com/google/uuid"

// sessionNamespace scopes SessionID.
var sessionNamespace = uuid.MustParse("6f1f0e4a-7a43-4c55-9a6e-2f0c1d6b8e10")

// SessionID returns a UUID derived from name. The same name always yields the
// same id, so traces stay byte-identical between runs.
func SessionID(name string) string {
	return uuid.NewSHA1(sessionNamespace, []byte(name)).String()
}
