package book

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Info is the per-book info.yaml descriptor that sits next to a source file.
type Info struct {
	Resource Resource `yaml:"resource" json:"resource"`
	Class    Class    `yaml:"class" json:"class"`
	Subject  Subject  `yaml:"subject" json:"subject"`
	Config   Config   `yaml:"book_config" json:"-"`
}

type Resource struct {
	Name    string   `yaml:"name" json:"name"`
	Type    string   `yaml:"type" json:"type"`
	Authors []string `yaml:"authors" json:"authors"`
}

type Class struct {
	Name       string `yaml:"name" json:"name"`
	GradeLevel string `yaml:"grade_level" json:"grade_level"`
	Status     string `yaml:"status" json:"status"`
}

type Subject struct {
	Name string `yaml:"name" json:"name"`
}

// Config holds the page layout facts needed to chunk a book.
type Config struct {
	FirstPageNumber int      `yaml:"first_page_number"`
	TOCPageNumbers  PageList `yaml:"table_of_contents_page_number"`
	TOCParser       string   `yaml:"table_of_contents_parser"`
	LastPageNumber  int      `yaml:"last_page_number"`
}

// PageList accepts a single page number, a YAML sequence, or a
// comma-separated string such as "3,4".
type PageList []int

func (p *PageList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var ints []int
		if err := node.Decode(&ints); err != nil {
			return fmt.Errorf("page list: %w", err)
		}
		*p = ints
		return nil
	case yaml.ScalarNode:
		ints, err := ParsePageList(node.Value)
		if err != nil {
			return err
		}
		*p = ints
		return nil
	default:
		return fmt.Errorf("page list: unsupported yaml node kind %d", node.Kind)
	}
}

// ParsePageList parses "7" or "3, 4" into page numbers.
func ParsePageList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("%q is not a comma-separated list of integers", s)
		}
		out = append(out, n)
	}
	return out, nil
}

// LoadInfo reads and decodes an info.yaml file.
func LoadInfo(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, fmt.Errorf("read book info: %w", err)
	}
	return ParseInfo(data)
}

// ParseInfo decodes info.yaml content, filling the original tool's defaults.
func ParseInfo(data []byte) (Info, error) {
	var info Info
	if err := yaml.Unmarshal(data, &info); err != nil {
		return Info{}, fmt.Errorf("decode book info: %w", err)
	}
	if info.Resource.Type == "" {
		info.Resource.Type = "textbook"
	}
	if info.Resource.Authors == nil {
		info.Resource.Authors = []string{}
	}
	if info.Config.FirstPageNumber <= 0 {
		info.Config.FirstPageNumber = 1
	}
	return info, nil
}
