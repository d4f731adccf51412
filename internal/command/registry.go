package command

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// categoryOrder is the order help lists its sections in.
var categoryOrder = []string{CategoryLobby, CategoryGame, CategoryCommunication, CategorySystem}

// Registry resolves console words to commands. Names and aliases share one
// lowercase namespace.
type Registry struct {
	index  map[string]*Command
	byName []*Command // sorted by Name
}

// Section is one help heading and the commands listed under it.
type Section struct {
	Category string
	Commands []*Command
}

// NewRegistry creates a Registry holding cmds.
//
// Postcondition: Returns an error if any command is unusable or any word is claimed twice.
func NewRegistry(cmds []Command) (*Registry, error) {
	r := &Registry{index: make(map[string]*Command, 2*len(cmds))}
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry creates a Registry with all built-in commands.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinCommands())
	if err != nil {
		panic(fmt.Sprintf("building default registry: %v", err))
	}
	return r
}

// Register adds cmd under its name and every alias.
//
// Postcondition: On error the registry is unchanged.
func (r *Registry) Register(cmd Command) error {
	if cmd.Name == "" {
		return errors.New("command has no name")
	}
	if cmd.Run == nil {
		return fmt.Errorf("command %q has no action", cmd.Name)
	}

	words := cmd.words()
	for i, w := range words {
		if slices.Contains(words[:i], w) {
			return fmt.Errorf("command %q lists %q twice", cmd.Name, w)
		}
		if owner, taken := r.index[w]; taken {
			return fmt.Errorf("command %q: %q is already taken by %q", cmd.Name, w, owner.Name)
		}
	}

	c := &cmd
	for _, w := range words {
		r.index[w] = c
	}
	at, _ := slices.BinarySearchFunc(r.byName, c.Name, func(e *Command, name string) int {
		return strings.Compare(e.Name, name)
	})
	r.byName = slices.Insert(r.byName, at, c)
	return nil
}

// Resolve looks up a command by name or alias, ignoring case.
func (r *Registry) Resolve(word string) (*Command, bool) {
	cmd, ok := r.index[strings.ToLower(word)]
	return cmd, ok
}

// Commands returns all registered commands sorted by name.
func (r *Registry) Commands() []*Command {
	return slices.Clone(r.byName)
}

// Sections groups the commands for help output. Known categories come first
// in a fixed order, then any others alphabetically; empty ones are omitted.
func (r *Registry) Sections() []Section {
	grouped := make(map[string][]*Command)
	for _, cmd := range r.byName {
		grouped[cmd.Category] = append(grouped[cmd.Category], cmd)
	}

	var extra []string
	for category := range grouped {
		if !slices.Contains(categoryOrder, category) {
			extra = append(extra, category)
		}
	}
	slices.Sort(extra)

	var out []Section
	for _, category := range append(slices.Clone(categoryOrder), extra...) {
		if cmds := grouped[category]; len(cmds) > 0 {
			out = append(out, Section{Category: category, Commands: cmds})
		}
	}
	return out
}

func (c *Command) words() []string {
	words := make([]string, 0, 1+len(c.Aliases))
	words = append(words, strings.ToLower(c.Name))
	for _, a := range c.Aliases {
		words = append(words, strings.ToLower(a))
	}
	return words
}
