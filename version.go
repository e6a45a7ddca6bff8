package peerscope

import (
	"fmt"
	"strings"
)

// appName is the name used in version and usage output.
const appName = "peerscope"

// Commit stores the current commit hash of this build, this should be
// set using the -ldflags during compilation.
var Commit string

// semanticAlphabet is the allowed characters from the semantic
// versioning guidelines for pre-release version and build metadata
// strings. In particular they MUST only contain characters in
// semanticAlphabet.
const semanticAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-."

// These constants define the application version and follow the
// semantic versioning 2.0.0 spec (http://semver.org/).
const (
	appMajor uint = 0
	appMinor uint = 1
	appPatch uint = 0

	// appPreRelease MUST only contain characters from
	// semanticAlphabet per the semantic versioning spec.
	appPreRelease = "beta"
)

// Version returns the application version as a properly formed string
// per the semantic versioning 2.0.0 spec (http://semver.org/).
func Version() string {
	// Start with the major, minor, and patch versions.
	version := fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)

	// Append pre-release version if there is one. The hyphen called
	// for by the semantic versioning spec is automatically appended
	// and should not be contained in the pre-release string.
	preRelease := normalizeVerString(appPreRelease)
	if preRelease != "" {
		version = fmt.Sprintf("%s-%s", version, preRelease)
	}

	return version
}

// normalizeVerString returns the passed string stripped of all
// characters which are not valid according to the semantic versioning
// guidelines for pre-release and build metadata strings.
func normalizeVerString(str string) string {
	var result strings.Builder

	for _, r := range str {
		if strings.ContainsRune(semanticAlphabet, r) {
			// Writing to a strings.Builder never returns an
			// error, so all errors are unexpected.
			_, err := result.WriteRune(r)
			if err != nil {
				panic(err)
			}
		}
	}

	return result.String()
}
