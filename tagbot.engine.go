package tagbot

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// Engine expands tag content against a Context. It holds no per-call state
// and is safe for concurrent use.
type Engine struct {
	variables *VariableRegistry
	logger    *zap.Logger
}

// NewEngine creates an engine. A nil registry means DefaultVariables.
func NewEngine(variables *VariableRegistry, logger *zap.Logger) *Engine {
	if variables == nil {
		variables = DefaultVariables()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug(LogMsgEngineCreated, zap.Int(LogFieldVariables, len(variables.Tokens())))
	return &Engine{
		variables: variables,
		logger:    logger,
	}
}

// Variables returns the engine's registry so callers can add tokens.
func (e *Engine) Variables() *VariableRegistry {
	return e.variables
}

// Substitute replaces placeholders in plain text.
func (e *Engine) Substitute(text string, vctx *Context) string {
	return e.variables.Substitute(text, vctx)
}

// Resolve returns a copy of doc with every string substituted and every
// "timestamp" value normalized. doc itself is left untouched.
func (e *Engine) Resolve(doc DocumentValue, vctx *Context) DocumentValue {
	return doc.Accept(&substituter{variables: e.variables, vctx: vctx}).(DocumentValue)
}

// Format expands raw tag content. Content that is not a JSON object is plain
// text and becomes {Content: text}. A JSON object is resolved as a structured
// document; if it ends up with neither "content" nor "embed" (or either has
// the wrong shape) Format returns nil and nothing should be sent.
func (e *Engine) Format(raw string, vctx *Context) *RenderableMessage {
	msg, err := e.Render(raw, vctx)
	if err != nil {
		e.logger.Debug(LogMsgTemplateMalformed, zap.Error(err))
		return nil
	}
	return msg
}

// Render is Format with the reason for a suppressed message reported as an
// ErrMalformedTemplate error.
func (e *Engine) Render(raw string, vctx *Context) (*RenderableMessage, error) {
	doc, ok := ParseDocument(raw)
	if !ok {
		return TextMessage(e.Substitute(raw, vctx)), nil
	}
	return messageFromDocument(e.Resolve(doc, vctx))
}

// substituter is the ValueVisitor that performs placeholder substitution.
type substituter struct {
	variables *VariableRegistry
	vctx      *Context
}

func (s *substituter) VisitString(v StringValue) Value {
	return StringValue(s.variables.Substitute(string(v), s.vctx))
}

func (s *substituter) VisitDocument(d DocumentValue) Value {
	out := make(DocumentValue, len(d))
	for key, item := range d {
		resolved := item.Accept(s)
		if key == DocKeyTimestamp {
			resolved = stripTimezoneDesignator(resolved)
		}
		out[key] = resolved
	}
	return out
}

func (s *substituter) VisitList(l ListValue) Value {
	out := make(ListValue, len(l))
	for i, item := range l {
		out[i] = item.Accept(s)
	}
	return out
}

func (s *substituter) VisitScalar(v ScalarValue) Value {
	return v
}

// stripTimezoneDesignator removes one trailing "Z" from a timestamp string.
// Non-string timestamps are returned as-is.
func stripTimezoneDesignator(v Value) Value {
	str, ok := v.(StringValue)
	if !ok {
		return v
	}
	s := string(str)
	if strings.HasSuffix(s, TimezoneDesignatorUpper) || strings.HasSuffix(s, TimezoneDesignatorLower) {
		return StringValue(s[:len(s)-1])
	}
	return str
}

// messageFromDocument validates a resolved document and converts it into a
// RenderableMessage.
func messageFromDocument(doc DocumentValue) (*RenderableMessage, error) {
	contentValue, hasContent := presentValue(doc, DocKeyContent)
	embedValue, hasEmbed := presentValue(doc, DocKeyEmbed)
	if !hasContent && !hasEmbed {
		return nil, NewMalformedTemplateError(ErrMsgMissingContentEmbed)
	}

	msg := &RenderableMessage{}

	if hasContent {
		v, ok := contentValue.(StringValue)
		if !ok {
			return nil, NewMalformedTemplateError(ErrMsgContentNotString)
		}
		msg.Content = string(v)
	}

	if hasEmbed {
		v, ok := embedValue.(DocumentValue)
		if !ok {
			return nil, NewMalformedTemplateError(ErrMsgEmbedNotDocument)
		}
		embed, err := decodeEmbed(v)
		if err != nil {
			return nil, err
		}
		msg.Embed = embed
	}

	return msg, nil
}

// presentValue returns doc[key] unless it is missing or null.
func presentValue(doc DocumentValue, key string) (Value, bool) {
	v, ok := doc[key]
	if !ok {
		return nil, false
	}
	if scalar, isScalar := v.(ScalarValue); isScalar && scalar.Interface() == nil {
		return nil, false
	}
	return v, true
}

func decodeEmbed(doc DocumentValue) (*Embed, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, NewMalformedTemplateError(ErrMsgEmbedDecode)
	}
	var embed Embed
	if err := json.Unmarshal(data, &embed); err != nil {
		return nil, NewMalformedTemplateError(ErrMsgEmbedDecode)
	}
	return &embed, nil
}
