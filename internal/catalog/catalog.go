package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/outbox/internal/payload"
)

// ErrUnknownCommand is returned by Validate for a command with no schema.
var ErrUnknownCommand = errors.New("unknown command")

// Error is a catalog load or validation failure with its CUE position.
type Error struct {
	Command string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	prefix := "catalog"
	if e.Command != "" {
		prefix = e.Command
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), prefix, e.Message)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Catalog holds the command schemas of one CUE file.
// It is not safe for concurrent use.
type Catalog struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	names   []string
}

// Load reads and compiles the catalog at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(path, data)
}

// Parse compiles catalog source. filename is used in error positions.
func Parse(filename string, src []byte) (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fromCUE("", err)
	}

	commands := v.LookupPath(cue.ParsePath("commands"))
	if !commands.Exists() {
		return nil, &Error{Message: "commands field is required", Pos: v.Pos()}
	}
	iter, err := commands.Fields(cue.Optional(true))
	if err != nil {
		return nil, fromCUE("", err)
	}

	c := &Catalog{ctx: ctx, schemas: make(map[string]cue.Value)}
	for iter.Next() {
		name := iter.Label()
		c.schemas[name] = iter.Value()
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)
	return c, nil
}

// Names returns the declared command names in sorted order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Has reports whether commandName has a schema.
func (c *Catalog) Has(commandName string) bool {
	_, ok := c.schemas[commandName]
	return ok
}

// Validate checks args against the schema of commandName.
// Returns an error matching ErrUnknownCommand if there is no schema, or an
// *Error describing the first violation.
func (c *Catalog) Validate(commandName string, args payload.Value) error {
	schema, ok := c.schemas[commandName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, commandName)
	}
	if args == nil {
		args = payload.Null{}
	}

	data, err := payload.Marshal(args)
	if err != nil {
		return fmt.Errorf("%s: %w", commandName, err)
	}
	value := c.ctx.CompileBytes(data, cue.Filename(commandName+".json"))
	if err := value.Err(); err != nil {
		return fromCUE(commandName, err)
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fromCUE(commandName, err)
	}
	return nil
}

// fromCUE keeps the first CUE error with its position.
func fromCUE(command string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Command: command, Message: err.Error()}
	}
	first := errs[0]
	out := &Error{Command: command, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		out.Pos = positions[0]
	}
	return out
}
