package tagbot

import (
	"sort"
	"strconv"
	"sync"

	"github.com/itsatony/go-tagbot/internal"
)

// Variable resolves one placeholder token against a Context.
// Implementations must be pure: same context, same output, no side effects.
type Variable interface {
	// Token returns the placeholder name without braces (e.g. "user.name").
	Token() string

	// Resolve returns the replacement text.
	Resolve(vctx *Context) string
}

// VariableFunc adapts a function to the Variable interface.
type VariableFunc struct {
	token string
	fn    func(vctx *Context) string
}

// NewVariableFunc creates a function-backed variable.
func NewVariableFunc(token string, fn func(vctx *Context) string) *VariableFunc {
	return &VariableFunc{token: token, fn: fn}
}

// Token returns the variable's token.
func (v *VariableFunc) Token() string {
	return v.token
}

// Resolve calls the wrapped function.
func (v *VariableFunc) Resolve(vctx *Context) string {
	return v.fn(vctx)
}

// VariableRegistry maps tokens to variables. It is safe for concurrent use.
type VariableRegistry struct {
	mu   sync.RWMutex
	vars map[string]Variable
}

// NewVariableRegistry creates an empty registry.
func NewVariableRegistry() *VariableRegistry {
	return &VariableRegistry{vars: make(map[string]Variable)}
}

// DefaultVariables creates a registry holding the built-in tokens.
func DefaultVariables() *VariableRegistry {
	r := NewVariableRegistry()
	for _, v := range builtinVariables() {
		r.MustRegister(v)
	}
	return r
}

// Register adds a variable. Tokens must be unique.
func (r *VariableRegistry) Register(v Variable) error {
	if v == nil {
		return NewConfigError(MetaKeyToken, ErrMsgNilVariable)
	}
	token := v.Token()
	if token == "" {
		return NewConfigError(MetaKeyToken, ErrMsgEmptyVariableToken)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.vars[token]; exists {
		return NewVariableExistsError(token)
	}
	r.vars[token] = v
	return nil
}

// MustRegister adds a variable and panics on failure.
func (r *VariableRegistry) MustRegister(v Variable) {
	if err := r.Register(v); err != nil {
		panic(err)
	}
}

// Lookup returns the variable for token.
func (r *VariableRegistry) Lookup(token string) (Variable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.vars[token]
	return v, ok
}

// Tokens returns all registered tokens in sorted order.
func (r *VariableRegistry) Tokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tokens := make([]string, 0, len(r.vars))
	for token := range r.vars {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

// Resolve returns the value of token in vctx. Unknown tokens report false so
// the caller can leave the placeholder untouched.
func (r *VariableRegistry) Resolve(token string, vctx *Context) (string, bool) {
	v, ok := r.Lookup(token)
	if !ok {
		return "", false
	}
	if vctx == nil {
		vctx = &Context{}
	}
	return v.Resolve(vctx), true
}

// Unknown returns the placeholder tokens in text that no variable resolves,
// in order of first appearance.
func (r *VariableRegistry) Unknown(text string) []string {
	var unknown []string
	for _, token := range internal.Tokens(text) {
		if _, ok := r.Lookup(token); !ok {
			unknown = append(unknown, token)
		}
	}
	return unknown
}

// Substitute replaces every known placeholder in text.
func (r *VariableRegistry) Substitute(text string, vctx *Context) string {
	return internal.Expand(text, func(token string) (string, bool) {
		return r.Resolve(token, vctx)
	})
}

func builtinVariables() []Variable {
	return []Variable{
		NewVariableFunc(VarUser, func(c *Context) string { return c.Member.Tag() }),
		NewVariableFunc(VarUserName, func(c *Context) string { return c.Member.DisplayName() }),
		NewVariableFunc(VarUserUsername, func(c *Context) string { return c.Member.Username }),
		NewVariableFunc(VarUserDiscriminator, func(c *Context) string { return c.Member.Discriminator }),
		NewVariableFunc(VarUserID, func(c *Context) string { return c.Member.ID }),
		NewVariableFunc(VarUserMention, func(c *Context) string { return c.Member.Mention() }),
		NewVariableFunc(VarUserAvatar, func(c *Context) string { return c.Member.AvatarURL }),
		NewVariableFunc(VarInvite, func(c *Context) string { return c.Invite }),
		NewVariableFunc(VarServer, func(c *Context) string { return c.Guild.Name }),
		NewVariableFunc(VarServerName, func(c *Context) string { return c.Guild.Name }),
		NewVariableFunc(VarServerID, func(c *Context) string { return c.Guild.ID }),
		NewVariableFunc(VarServerMembers, func(c *Context) string { return strconv.Itoa(c.Guild.MemberCount) }),
		NewVariableFunc(VarChannel, func(c *Context) string { return c.Message.ChannelMention() }),
		NewVariableFunc(VarChannelMention, func(c *Context) string { return c.Message.ChannelMention() }),
		NewVariableFunc(VarChannelID, func(c *Context) string { return c.Message.ChannelID }),
		NewVariableFunc(VarMessageID, func(c *Context) string { return c.Message.ID }),
	}
}
