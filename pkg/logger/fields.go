package logger

import (
	"time"

	"github.com/rs/zerolog"
)

type Field interface {
	AddTo(event *zerolog.Event)
	addToContext(ctx zerolog.Context) zerolog.Context
}

type StringField struct {
	Key   string
	Value string
}

func String(key, value string) Field { return StringField{Key: key, Value: value} }

func (f StringField) AddTo(event *zerolog.Event) { event.Str(f.Key, f.Value) }

func (f StringField) addToContext(ctx zerolog.Context) zerolog.Context {
	return ctx.Str(f.Key, f.Value)
}

type IntField struct {
	Key   string
	Value int
}

func Int(key string, value int) Field { return IntField{Key: key, Value: value} }

func (f IntField) AddTo(event *zerolog.Event) { event.Int(f.Key, f.Value) }

func (f IntField) addToContext(ctx zerolog.Context) zerolog.Context { return ctx.Int(f.Key, f.Value) }

type Float64Field struct {
	Key   string
	Value float64
}

func Float64(key string, value float64) Field { return Float64Field{Key: key, Value: value} }

func (f Float64Field) AddTo(event *zerolog.Event) { event.Float64(f.Key, f.Value) }

func (f Float64Field) addToContext(ctx zerolog.Context) zerolog.Context {
	return ctx.Float64(f.Key, f.Value)
}

type BoolField struct {
	Key   string
	Value bool
}

func Bool(key string, value bool) Field { return BoolField{Key: key, Value: value} }

func (f BoolField) AddTo(event *zerolog.Event) { event.Bool(f.Key, f.Value) }

func (f BoolField) addToContext(ctx zerolog.Context) zerolog.Context { return ctx.Bool(f.Key, f.Value) }

type DurationField struct {
	Key   string
	Value time.Duration
}

func Duration(key string, value time.Duration) Field { return DurationField{Key: key, Value: value} }

func (f DurationField) AddTo(event *zerolog.Event) { event.Dur(f.Key, f.Value) }

func (f DurationField) addToContext(ctx zerolog.Context) zerolog.Context {
	return ctx.Dur(f.Key, f.Value)
}

// Date logs a time as YYYY-MM-DD
func Date(key string, value time.Time) Field { return String(key, value.Format("2006-01-02")) }

type ErrorField struct {
	Err error
}

func Err(err error) Field { return ErrorField{Err: err} }

func (f ErrorField) AddTo(event *zerolog.Event) { event.Err(f.Err) }

func (f ErrorField) addToContext(ctx zerolog.Context) zerolog.Context { return ctx.Err(f.Err) }

type AnyField struct {
	Key   string
	Value interface{}
}

func Any(key string, value interface{}) Field { return AnyField{Key: key, Value: value} }

func (f AnyField) AddTo(event *zerolog.Event) { event.Interface(f.Key, f.Value) }

func (f AnyField) addToContext(ctx zerolog.Context) zerolog.Context {
	return ctx.Interface(f.Key, f.Value)
}
