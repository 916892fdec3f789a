package infra

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	xxhash "github.com/cespare/xxhash/v2"
)

// ErrNoState is returned by Discover when no valid record exists. Torn
// down infrastructure reports this, never stale data.
var ErrNoState = errors.New("no infrastructure state found")

const recordExt = ".state"

// NewTimestamp returns the sortable timestamp format used in records.
func NewTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// recordName builds a globally unique per-run file name: concurrent runs
// write disjoint records, so discovery never races a writer.
func recordName(st State) string {
	id := xxhash.Sum64String(st.Provider + "|" + st.Timestamp + "|" + st.WorkspaceDir)
	ts := strings.NewReplacer(":", "", "-", "", "+", "").Replace(st.Timestamp)
	return fmt.Sprintf("infra-%s-%08x%s", ts, uint32(id), recordExt)
}

// Save persists the state as a plain key-line text record under dir and
// returns the record path.
func Save(dir string, st State) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Provider: %s\n", st.Provider)
	fmt.Fprintf(&b, "Timestamp: %s\n", st.Timestamp)
	fmt.Fprintf(&b, "Terraform Directory: %s\n", st.WorkspaceDir)
	if st.EndpointURL != "" {
		fmt.Fprintf(&b, "Endpoint URL: %s\n", st.EndpointURL)
	}
	if st.APIKey != "" {
		fmt.Fprintf(&b, "API Key: %s\n", st.APIKey)
	}
	if st.SSHKeyPath != "" {
		fmt.Fprintf(&b, "SSH Key Path: %s\n", st.SSHKeyPath)
	}
	b.WriteString("Outputs:\n")
	keys := make([]string, 0, len(st.Outputs))
	for k := range st.Outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s: %s\n", k, st.Outputs[k])
	}

	p := filepath.Join(dir, recordName(st))
	// Records carry API keys; keep them owner-only.
	if err := os.WriteFile(p, []byte(b.String()), 0o600); err != nil {
		return "", fmt.Errorf("write state record: %w", err)
	}
	return p, nil
}

// ParseRecord reads one record. Parsing is line-prefix based and tolerant:
// malformed lines are skipped. A record missing Provider or Timestamp is
// rejected.
func ParseRecord(path string) (State, error) {
	f, err := os.Open(path)
	if err != nil {
		return State{}, err
	}
	defer f.Close()

	var st State
	st.Outputs = Outputs{}
	inOutputs := false
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "Provider:"):
			st.Provider = strings.TrimSpace(strings.TrimPrefix(line, "Provider:"))
			inOutputs = false
		case strings.HasPrefix(line, "Timestamp:"):
			st.Timestamp = strings.TrimSpace(strings.TrimPrefix(line, "Timestamp:"))
			inOutputs = false
		case strings.HasPrefix(line, "Terraform Directory:"):
			st.WorkspaceDir = strings.TrimSpace(strings.TrimPrefix(line, "Terraform Directory:"))
			inOutputs = false
		case strings.HasPrefix(line, "Endpoint URL:"):
			st.EndpointURL = strings.TrimSpace(strings.TrimPrefix(line, "Endpoint URL:"))
			inOutputs = false
		case strings.HasPrefix(line, "API Key:"):
			st.APIKey = strings.TrimSpace(strings.TrimPrefix(line, "API Key:"))
			inOutputs = false
		case strings.HasPrefix(line, "SSH Key Path:"):
			st.SSHKeyPath = strings.TrimSpace(strings.TrimPrefix(line, "SSH Key Path:"))
			inOutputs = false
		case strings.HasPrefix(line, "Outputs:"):
			inOutputs = true
		case inOutputs && strings.HasPrefix(line, "  "):
			k, v, ok := strings.Cut(strings.TrimSpace(line), ":")
			if ok && k != "" {
				st.Outputs[strings.TrimSpace(k)] = strings.TrimSpace(v)
			}
		default:
			// Unknown or malformed line: skip, continue.
		}
	}
	if err := sc.Err(); err != nil {
		return State{}, err
	}
	if st.Provider == "" || st.Timestamp == "" {
		return State{}, fmt.Errorf("record %s missing provider or timestamp", filepath.Base(path))
	}
	if st.EndpointURL == "" {
		st.EndpointURL = st.Outputs[OutputZapAPIURL]
	}
	return st, nil
}

// Discover returns the record with the maximal timestamp among valid
// records in dir, with the path it was read from. Malformed records are
// skipped, not raised. Timestamps compare lexicographically, which the
// RFC3339 UTC format makes equivalent to chronological order.
func Discover(dir string) (State, string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, "", ErrNoState
		}
		return State{}, "", err
	}

	var best State
	var bestPath string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), recordExt) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		st, perr := ParseRecord(p)
		if perr != nil {
			continue
		}
		if bestPath == "" || st.Timestamp > best.Timestamp {
			best = st
			bestPath = p
		}
	}
	if bestPath == "" {
		return State{}, "", ErrNoState
	}
	return best, bestPath, nil
}
