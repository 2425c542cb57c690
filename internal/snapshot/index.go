package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Extension is the archive suffix of hosted snapshots.
const Extension = ".tar.lz4"

var (
	// errNoSnapshots is returned when the index lists no snapshot archives.
	errNoSnapshots = errors.New("no snapshots found in index")
	// errBadHTTPStatus is returned when the snapshot host answers with a non-200 status.
	errBadHTTPStatus = errors.New("unexpected http status")

	// hrefPattern matches anchor targets in an HTML directory index.
	hrefPattern = regexp.MustCompile(`href="([^"]+)"`)
	// versionTokenPattern extracts the numeric or dotted token snapshot names
	// embed (a block height or a release version).
	versionTokenPattern = regexp.MustCompile(`\d+(?:\.\d+)*`)
)

// ListIndex fetches the directory index at indexURL and returns the snapshot
// archive names it lists. Both HTML indexes (nginx/apache autoindex) and
// plain-text listings are understood.
func ListIndex(ctx context.Context, indexURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, indexURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	response, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", indexURL, response.Status, errBadHTTPStatus)
	}

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	return parseIndex(string(contents)), nil
}

// parseIndex extracts *.tar.lz4 names from an index document.
func parseIndex(document string) []string {
	seen := make(map[string]struct{})

	var names []string

	add := func(raw string) {
		name := strings.TrimSpace(raw)
		// Hosted indexes may list full or percent-encoded paths.
		if decoded, err := url.QueryUnescape(name); err == nil {
			name = decoded
		}

		name = name[strings.LastIndex(name, "/")+1:]
		if !strings.HasSuffix(name, Extension) {
			return
		}

		if _, ok := seen[name]; ok {
			return
		}

		seen[name] = struct{}{}

		names = append(names, name)
	}

	for _, match := range hrefPattern.FindAllStringSubmatch(document, -1) {
		add(match[1])
	}

	// Plain-text listings: one name per line.
	if len(names) == 0 {
		for _, line := range strings.Split(document, "\n") {
			add(line)
		}
	}

	return names
}

// Latest picks the newest snapshot from names: archives are compared by the
// height or version token embedded in the filename. Names without a parseable
// token always sort older than tokened ones and lexically among themselves,
// keeping the order total. This matches what a shell `ls | sort | tail -1`
// picks for conventional snapshot naming.
func Latest(names []string) (string, error) {
	if len(names) == 0 {
		return "", errNoSnapshots
	}

	var tokened, plain []string

	for _, name := range names {
		if _, ok := versionToken(name); ok {
			tokened = append(tokened, name)
		} else {
			plain = append(plain, name)
		}
	}

	if len(tokened) == 0 {
		sort.Strings(plain)

		return plain[len(plain)-1], nil
	}

	sort.Slice(tokened, func(i, j int) bool {
		left, _ := versionToken(tokened[i])
		right, _ := versionToken(tokened[j])

		if !left.Equal(right) {
			return left.LessThan(right)
		}

		return tokened[i] < tokened[j]
	})

	return tokened[len(tokened)-1], nil
}

// versionToken parses the numeric token of a snapshot name into a comparable version.
func versionToken(name string) (*goversion.Version, bool) {
	token := versionTokenPattern.FindString(name)
	if token == "" {
		return nil, false
	}

	parsed, err := goversion.NewVersion(token)
	if err != nil {
		return nil, false
	}

	return parsed, true
}
