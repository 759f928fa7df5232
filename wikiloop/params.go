package wikiloop

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/martinemde/deepwiki/llm"
)

// Params are the inputs for one documentation run.
type Params struct {
	RepositoryURL     string          `mapstructure:"repository_url"`
	Instruction       string          `mapstructure:"instruction"`
	Model             llm.ModelConfig `mapstructure:"model"`
	Tools             []ToolInstance  `mapstructure:"tools"`
	AccessToken       string          `mapstructure:"access_token"`
	AnalysisDepth     string          `mapstructure:"analysis_depth"`
	IncludeDiagrams   bool            `mapstructure:"include_diagrams"`
	MaximumIterations int             `mapstructure:"maximum_iterations"`

	// History is a prior conversation to seed the run with, inserted
	// between the system message and the analysis request.
	History []llm.Message `mapstructure:"-"`

	// Schemas describes the tools for the model. When empty, minimal
	// schemas are derived from Tools.
	Schemas []llm.ToolSchema `mapstructure:"-"`
}

// DecodeParams builds Params from a free-form parameter mapping, applying
// defaults for absent keys.
func DecodeParams(raw map[string]any) (Params, error) {
	params := Params{
		AnalysisDepth:     "standard",
		IncludeDiagrams:   true,
		MaximumIterations: DefaultMaxIterations,
	}
	if err := mapstructure.Decode(raw, &params); err != nil {
		return Params{}, fmt.Errorf("invalid parameters: %w", err)
	}
	return params, nil
}

// Validate checks that the parameters describe a runnable analysis.
func (p Params) Validate() error {
	if !ValidRepositoryURL(p.RepositoryURL) {
		return fmt.Errorf(
			"invalid repository URL: %s. Provide a valid GitHub, GitLab, or Bitbucket repository URL",
			p.RepositoryURL)
	}
	if p.MaximumIterations < 0 {
		return fmt.Errorf("maximum_iterations must not be negative, got %d", p.MaximumIterations)
	}
	return nil
}

// validRepositoryHosts are the forges accepted for analysis.
var validRepositoryHosts = []string{"github.com", "gitlab.com", "bitbucket.org"}

// ValidRepositoryURL reports whether rawURL is an http(s) URL on a known
// forge with at least an owner and repository path segment.
func ValidRepositoryURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	hostOK := false
	for _, host := range validRepositoryHosts {
		if strings.Contains(parsed.Host, host) {
			hostOK = true
			break
		}
	}
	if !hostOK {
		return false
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	return len(segments) >= 2 && segments[0] != "" && segments[1] != ""
}

// ToolSchemas returns the schemas to send to the model, deriving minimal
// ones from the tool instances when none were supplied.
func (p Params) ToolSchemas() []llm.ToolSchema {
	if len(p.Schemas) > 0 {
		return p.Schemas
	}
	schemas := make([]llm.ToolSchema, len(p.Tools))
	for i, tool := range p.Tools {
		schemas[i] = llm.ToolSchema{
			Name:       tool.Name,
			Parameters: map[string]any{"type": "object"},
		}
	}
	return schemas
}

// SystemPrompt builds the system message for the run.
func (p Params) SystemPrompt() string {
	instruction := p.Instruction
	if instruction == "" {
		instruction = "Generate comprehensive wiki documentation for the repository."
	}

	diagramLine := "Generate Mermaid diagrams to illustrate code relationships, data flow, and architecture"
	if !p.IncludeDiagrams {
		diagramLine = "Focus on text-based documentation"
	}

	return fmt.Sprintf(`You are DeepWiki, an AI-powered documentation generator. Your task is to analyze the provided repository and create comprehensive wiki documentation.

%s

## Analysis Configuration:
- Repository URL: %s
- Analysis Depth: %s
- Include Diagrams: %v

## Your Responsibilities:
1. **Repository Analysis**: Understand the codebase structure, technologies used, and project purpose
2. **Documentation Generation**: Create clear, comprehensive documentation including:
   - Project overview and purpose
   - Installation and setup instructions
   - Usage examples and API documentation
   - Code architecture explanation
   - Contributing guidelines
3. **Visual Diagrams**: %s
4. **Structured Output**: Organize information in a logical, easy-to-navigate format

## Analysis Depth Guidelines:
- **Basic**: Focus on README enhancement and basic structure documentation
- **Standard**: Include detailed API docs, setup guides, and basic architecture diagrams
- **Comprehensive**: Deep code analysis, detailed diagrams, and extensive documentation

Use the available tools to analyze the repository and gather information needed for documentation generation.
`, instruction, p.RepositoryURL, p.AnalysisDepth, p.IncludeDiagrams, diagramLine)
}

// UserPrompt builds the analysis request message.
func (p Params) UserPrompt() string {
	tokenLine := "Not provided (public repository)"
	if p.AccessToken != "" {
		tokenLine = "Provided"
	}

	return fmt.Sprintf(`Please analyze the repository at %s and generate comprehensive wiki documentation.

Repository Details:
- URL: %s
- Access Token: %s
- Analysis Depth: %s
- Include Diagrams: %v

Please start by examining the repository structure and then proceed with generating the documentation.`,
		p.RepositoryURL, p.RepositoryURL, tokenLine, p.AnalysisDepth, p.IncludeDiagrams)
}
