package wikiloop

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	git "github.com/go-git/go-git/v5"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Provider coordinates for the built-in local tools.
const (
	ProviderBuiltin   = "builtin"
	ProviderTypeLocal = "local"
)

// LocalToolProvider implements ToolInvoker with repository-analysis tools
// that run against a local checkout: clone_repository, list_directory,
// read_file, and grep.
type LocalToolProvider struct {
	workDir string

	// accessToken, when set, authenticates clones of private repositories.
	accessToken string
}

// NewLocalToolProvider creates a provider rooted at workDir.
func NewLocalToolProvider(workDir string) *LocalToolProvider {
	if workDir == "" {
		workDir, _ = os.Getwd()
	}
	return &LocalToolProvider{workDir: workDir}
}

// SetAccessToken configures authentication for subsequent clones.
func (p *LocalToolProvider) SetAccessToken(token string) {
	p.accessToken = token
}

// WorkDir returns the provider's root directory.
func (p *LocalToolProvider) WorkDir() string {
	return p.workDir
}

// Instances returns the tool instances this provider serves, for
// registration in a run's registry.
func (p *LocalToolProvider) Instances() []ToolInstance {
	names := []string{"clone_repository", "list_directory", "read_file", "grep"}
	instances := make([]ToolInstance, len(names))
	for i, name := range names {
		instances[i] = ToolInstance{
			Name:         name,
			Provider:     ProviderBuiltin,
			ProviderType: ProviderTypeLocal,
		}
	}
	return instances
}

// Invoke implements ToolInvoker.
func (p *LocalToolProvider) Invoke(ctx context.Context, providerType, provider, toolName string, args map[string]any) (<-chan ToolChunk, error) {
	if providerType != ProviderTypeLocal || provider != ProviderBuiltin {
		return nil, fmt.Errorf("unknown tool provider: %s/%s", providerType, provider)
	}

	switch toolName {
	case "clone_repository":
		return p.cloneRepository(ctx, args)
	case "list_directory":
		return p.listDirectory(args)
	case "read_file":
		return p.readFile(args)
	case "grep":
		return p.grep(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", toolName)
	}
}

// produce runs fn in a goroutine, delivering its fragments lazily. An error
// from fn arrives as a terminating error fragment.
func produce(fn func(send func(ToolChunk)) error) <-chan ToolChunk {
	ch := make(chan ToolChunk, 8)
	go func() {
		defer close(ch)
		if err := fn(func(c ToolChunk) { ch <- c }); err != nil {
			ch <- ToolChunk{Type: ToolChunkError, Err: err}
		}
	}()
	return ch
}

func (p *LocalToolProvider) resolvePath(path string) string {
	if path == "" {
		return p.workDir
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.workDir, path)
}

func (p *LocalToolProvider) cloneRepository(ctx context.Context, args map[string]any) (<-chan ToolChunk, error) {
	repoURL, ok := GetStringArg(args, "url")
	if !ok || repoURL == "" {
		return nil, fmt.Errorf("url is required")
	}

	dest := p.resolvePath(repoDirName(repoURL))

	return produce(func(send func(ToolChunk)) error {
		opts := &git.CloneOptions{
			URL:   repoURL,
			Depth: 1,
		}
		if p.accessToken != "" {
			opts.Auth = &githttp.BasicAuth{Username: "token", Password: p.accessToken}
		}

		_, err := git.PlainCloneContext(ctx, dest, false, opts)
		switch {
		case err == nil:
			send(ToolChunk{Type: ToolChunkText, Text: fmt.Sprintf("Cloned %s\n", repoURL)})
		case errors.Is(err, git.ErrRepositoryAlreadyExists):
			send(ToolChunk{Type: ToolChunkText, Text: fmt.Sprintf("Repository %s already cloned\n", repoURL)})
		default:
			return fmt.Errorf("clone_repository: %w", err)
		}

		send(ToolChunk{Type: ToolChunkJSON, JSON: map[string]any{"path": dest}})
		return nil
	}), nil
}

// repoDirName derives a checkout directory name from the repository URL.
func repoDirName(repoURL string) string {
	trimmed := strings.TrimSuffix(strings.Trim(repoURL, "/"), ".git")
	segments := strings.Split(trimmed, "/")
	if len(segments) >= 2 {
		return segments[len(segments)-2] + "-" + segments[len(segments)-1]
	}
	return segments[len(segments)-1]
}

type dirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size,omitempty"`
}

func (p *LocalToolProvider) listDirectory(args map[string]any) (<-chan ToolChunk, error) {
	path, _ := GetStringArg(args, "path")
	resolved := p.resolvePath(path)

	return produce(func(send func(ToolChunk)) error {
		entries, err := os.ReadDir(resolved)
		if err != nil {
			return fmt.Errorf("list_directory: %w", err)
		}

		listing := make([]dirEntry, 0, len(entries))
		for _, entry := range entries {
			if entry.Name() == ".git" {
				continue
			}
			de := dirEntry{Name: entry.Name(), IsDir: entry.IsDir()}
			if info, err := entry.Info(); err == nil && !entry.IsDir() {
				de.Size = info.Size()
			}
			listing = append(listing, de)
		}

		send(ToolChunk{Type: ToolChunkJSON, JSON: listing})
		return nil
	}), nil
}

func (p *LocalToolProvider) readFile(args map[string]any) (<-chan ToolChunk, error) {
	path, ok := GetStringArg(args, "path")
	if !ok || path == "" {
		return nil, fmt.Errorf("path is required")
	}
	offset, _ := GetIntArg(args, "offset")
	limit, _ := GetIntArg(args, "limit")
	if limit == 0 {
		limit = 2000
	}
	resolved := p.resolvePath(path)

	return produce(func(send func(ToolChunk)) error {
		data, err := os.ReadFile(resolved)
		if err != nil {
			return fmt.Errorf("read_file: %w", err)
		}

		lines := strings.Split(string(data), "\n")
		start := 0
		if offset > 0 {
			start = offset - 1
		}
		if start >= len(lines) {
			return nil
		}
		end := len(lines)
		if start+limit < end {
			end = start + limit
		}

		var sb strings.Builder
		for i := start; i < end; i++ {
			fmt.Fprintf(&sb, "%d | %s\n", i+1, lines[i])
		}
		send(ToolChunk{Type: ToolChunkText, Text: sb.String()})
		return nil
	}), nil
}

func (p *LocalToolProvider) grep(args map[string]any) (<-chan ToolChunk, error) {
	pattern, ok := GetStringArg(args, "pattern")
	if !ok || pattern == "" {
		return nil, fmt.Errorf("pattern is required")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}

	path, _ := GetStringArg(args, "path")
	maxResults, _ := GetIntArg(args, "max_results")
	if maxResults <= 0 {
		maxResults = 200
	}
	root := p.resolvePath(path)

	return produce(func(send func(ToolChunk)) error {
		matches := 0
		err := filepath.WalkDir(root, func(filePath string, d os.DirEntry, err error) error {
			if err != nil {
				return nil // unreadable entries are skipped, not fatal
			}
			if d.IsDir() {
				if d.Name() == ".git" {
					return filepath.SkipDir
				}
				return nil
			}
			if matches >= maxResults {
				return filepath.SkipAll
			}

			f, err := os.Open(filePath)
			if err != nil {
				return nil
			}
			defer f.Close()

			rel, relErr := filepath.Rel(p.workDir, filePath)
			if relErr != nil {
				rel = filePath
			}

			scanner := bufio.NewScanner(f)
			lineNo := 0
			for scanner.Scan() && matches < maxResults {
				lineNo++
				line := scanner.Text()
				if re.MatchString(line) {
					matches++
					send(ToolChunk{
						Type: ToolChunkText,
						Text: fmt.Sprintf("%s:%d: %s\n", rel, lineNo, line),
					})
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("grep: %w", err)
		}
		if matches == 0 {
			send(ToolChunk{Type: ToolChunkText, Text: "No matches found\n"})
		}
		return nil
	}), nil
}
