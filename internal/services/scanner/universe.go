package scanner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoUniverseProvider is returned for index universes when no reference
// provider is configured (for example, no EODHD key)
var ErrNoUniverseProvider = errors.New("no universe provider configured")

// fetchUniverse resolves one universe spec:
//
//	eodhd:GSPC.INDX   index constituents from the reference provider
//	file:path         one symbol per line, '#' comments allowed
//	list:AAPL,MSFT    inline symbols
//
// A spec without a scheme is treated as an index name.
func (s *Service) fetchUniverse(ctx context.Context, spec string) ([]string, error) {
	scheme, value, found := strings.Cut(spec, ":")
	if !found {
		scheme, value = "eodhd", spec
	}
	value = strings.TrimSpace(value)

	switch strings.ToLower(scheme) {
	case "eodhd", "index":
		if s.universes == nil {
			return nil, ErrNoUniverseProvider
		}
		return s.universes.FetchConstituents(ctx, value)
	case "file":
		return readSymbolFile(value)
	case "list":
		var out []string
		for _, sym := range strings.Split(value, ",") {
			if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
				out = append(out, sym)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown universe scheme %q", scheme)
}

func readSymbolFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}
		// tolerate "SYMBOL,Name" lines
		if i := strings.IndexByte(line, ','); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		out = append(out, strings.ToUpper(line))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s lists no symbols", path)
	}
	return out, nil
}
