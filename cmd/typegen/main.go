// Command typegen parses Go struct definitions and generates the TypeScript
// types the browser client uses for the websocket protocol and settings.
// Run from the project root:
//
//	go run ./cmd/typegen -out web/src/types/generated.ts
//
// Protocol or snapshot changes on the Go side then propagate to the client.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
)

const modulePath = "triviahost"

// sourceDirs are the packages whose types reach the browser.
var sourceDirs = []string{
	"core",
	"protocol",
	"factories",
	"services/gemini",
	"services/openai/llm",
	"services/openai/tts",
}

// target is one interface to emit. Fields are optional unless listed in
// required: settings JSON only carries overrides, while wire payloads are
// always filled in by the server.
type target struct {
	key      string // "dir:StructName"
	tsName   string
	required []string
}

var targets = []target{
	// Game state
	{"core:Personality", "Personality", []string{"id", "name", "description", "voice"}},
	{"core:GameRound", "GameRound", []string{"question", "answer"}},
	{"core:TranscriptEntry", "TranscriptEntry", []string{"id", "text", "source"}},
	{"core:GroundingSource", "GroundingSource", []string{"uri"}},
	{"core:GameSnapshot", "GameSnapshot", []string{"state", "status_message", "transcripts", "sources", "score", "is_playing"}},
	// Wire protocol
	{"protocol:Envelope", "Envelope", []string{"type"}},
	{"protocol:HelloPayload", "HelloPayload", []string{"sample_rate"}},
	{"protocol:SelectPersonalityPayload", "SelectPersonalityPayload", []string{"id"}},
	{"protocol:CaptureReadyPayload", "CaptureReadyPayload", []string{"sample_rate"}},
	{"protocol:CaptureDeniedPayload", "CaptureDeniedPayload", nil},
	{"protocol:PersonalitiesPayload", "PersonalitiesPayload", []string{"list"}},
	{"protocol:StatePayload", "StatePayload", []string{"snapshot"}},
	{"protocol:CaptureStartPayload", "CaptureStartPayload", []string{"sample_rate", "frame_size"}},
	{"protocol:PlayPayload", "PlayPayload", []string{"start_at", "sample_rate", "channels", "data"}},
	{"protocol:ErrorPayload", "ErrorPayload", []string{"message"}},
	// Settings
	{"factories:SettingsConfig", "Settings", nil},
	{"factories:TransportFactoryConfig", "TransportConfig", nil},
	{"factories:WebSocketProviderConfig", "WebSocketConfig", nil},
	{"factories:ConsoleProviderConfig", "ConsoleConfig", nil},
	{"factories:SessionConfig", "SessionConfig", nil},
	{"factories:GameSessionConfig", "GameConfig", nil},
	{"factories:PlaybackSessionConfig", "PlaybackConfig", nil},
	{"factories:CaptureSessionConfig", "CaptureConfig", nil},
	{"factories:QuestionFactoryConfig", "QuestionServiceConfig", nil},
	{"factories:SpeechFactoryConfig", "SpeechServiceConfig", nil},
	{"factories:LiveFactoryConfig", "LiveServiceConfig", nil},
	{"services/gemini:Config", "GeminiConfig", nil},
	{"services/openai/llm:Config", "OpenAiLlmConfig", nil},
	{"services/openai/tts:Config", "OpenAiTtsConfig", nil},
}

type messageShape struct {
	msgType string
	payload string // TS payload type, empty when the message carries none
}

var clientMessages = []messageShape{
	{"hello", "HelloPayload"},
	{"select_personality", "SelectPersonalityPayload"},
	{"start_game", ""},
	{"next_question", ""},
	{"reset", ""},
	{"audio_resumed", ""},
	{"capture_ready", "CaptureReadyPayload"},
	{"capture_denied", "CaptureDeniedPayload"},
}

var serverMessages = []messageShape{
	{"personalities", "PersonalitiesPayload"},
	{"state", "StatePayload"},
	{"resume_audio", ""},
	{"capture_start", "CaptureStartPayload"},
	{"capture_stop", ""},
	{"play", "PlayPayload"},
	{"error", "ErrorPayload"},
}

var basicTypes = map[string]string{
	"string": "string", "bool": "boolean", "any": "unknown", "byte": "number",
	"int": "number", "int32": "number", "int64": "number",
	"uint": "number", "uint32": "number", "uint64": "number",
	"float32": "number", "float64": "number",
}

// foreignTypes covers the standard library types that appear in the structs.
var foreignTypes = map[string]string{
	"json.RawMessage": "unknown",
	"time.Duration":   "number",
}

// declared is a struct together with the import table of its file, which is
// needed to resolve package-qualified field types.
type declared struct {
	dir     string
	st      *ast.StructType
	imports map[string]string // import name -> dir inside the module
}

// registry holds everything parsed from sourceDirs, keyed "dir:Name".
type registry struct {
	structs map[string]declared
	enums   map[string][]string
	aliases map[string]ast.Expr
	refs    map[string]string
}

func newRegistry() *registry {
	r := &registry{
		structs: map[string]declared{},
		enums:   map[string][]string{},
		aliases: map[string]ast.Expr{},
		refs:    map[string]string{},
	}
	for _, t := range targets {
		r.refs[t.key] = t.tsName
	}
	return r
}

func (r *registry) load(root string) error {
	for _, dir := range sourceDirs {
		if err := r.loadDir(root, dir); err != nil {
			return err
		}
	}
	return nil
}

func (r *registry) loadDir(root, dir string) error {
	fset := token.NewFileSet()
	skipTests := func(fi fs.FileInfo) bool { return !strings.HasSuffix(fi.Name(), "_test.go") }
	pkgs, err := parser.ParseDir(fset, filepath.Join(root, dir), skipTests, 0)
	if err != nil {
		return fmt.Errorf("parse %s: %w", dir, err)
	}
	for _, pkg := range pkgs {
		for _, file := range pkg.Files {
			r.addFile(dir, file)
		}
	}
	return nil
}

func (r *registry) addFile(dir string, file *ast.File) {
	imports := map[string]string{}
	for _, imp := range file.Imports {
		path, _ := strconv.Unquote(imp.Path.Value)
		name := path[strings.LastIndex(path, "/")+1:]
		if imp.Name != nil {
			name = imp.Name.Name
		}
		if strings.HasPrefix(path, modulePath+"/") {
			imports[name] = strings.TrimPrefix(path, modulePath+"/")
		} else {
			imports[name] = ""
		}
	}

	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok {
			continue
		}
		for _, spec := range gd.Specs {
			switch s := spec.(type) {
			case *ast.TypeSpec:
				key := dir + ":" + s.Name.Name
				switch t := s.Type.(type) {
				case *ast.StructType:
					r.structs[key] = declared{dir: dir, st: t, imports: imports}
				case *ast.Ident:
					r.aliases[key] = t
				}
			case *ast.ValueSpec:
				// Only typed string constants form a union, e.g.
				// `GameStateIdle GameState = "idle"`.
				typ, ok := s.Type.(*ast.Ident)
				if gd.Tok != token.CONST || !ok {
					continue
				}
				for _, v := range s.Values {
					if lit, ok := v.(*ast.BasicLit); ok && lit.Kind == token.STRING {
						val, _ := strconv.Unquote(lit.Value)
						key := dir + ":" + typ.Name
						r.enums[key] = append(r.enums[key], val)
					}
				}
			}
		}
	}
}

// tsType renders a field type as seen from a struct declared in d.
func (r *registry) tsType(expr ast.Expr, d declared) string {
	switch t := expr.(type) {
	case *ast.Ident:
		if ts, ok := basicTypes[t.Name]; ok {
			return ts
		}
		return r.named(d.dir, t.Name, d)
	case *ast.StarExpr:
		return r.tsType(t.X, d)
	case *ast.ArrayType:
		return r.tsType(t.Elt, d) + "[]"
	case *ast.MapType:
		return "Record<string, " + r.tsType(t.Value, d) + ">"
	case *ast.SelectorExpr:
		pkg, _ := t.X.(*ast.Ident)
		if pkg == nil {
			return "unknown"
		}
		if ts, ok := foreignTypes[pkg.Name+"."+t.Sel.Name]; ok {
			return ts
		}
		if dir := d.imports[pkg.Name]; dir != "" {
			return r.named(dir, t.Sel.Name, declared{dir: dir})
		}
	}
	return "unknown"
}

func (r *registry) named(dir, name string, d declared) string {
	key := dir + ":" + name
	if ts, ok := r.refs[key]; ok {
		return ts
	}
	if vals := r.enums[key]; len(vals) > 0 {
		return unionLiteral(vals)
	}
	if under, ok := r.aliases[key]; ok {
		return r.tsType(under, declared{dir: dir, imports: d.imports})
	}
	return "unknown"
}

// unionLiteral returns "'a' | 'b'" for the given values.
func unionLiteral(vals []string) string {
	quoted := make([]string, len(vals))
	for i, v := range vals {
		quoted[i] = "'" + v + "'"
	}
	return strings.Join(quoted, " | ")
}

// jsonField reports the JSON name of a struct field and whether it carries
// omitempty. Untagged, ignored and credential fields report ok=false.
func jsonField(field *ast.Field) (name string, omitempty, ok bool) {
	if field.Tag == nil {
		return "", false, false
	}
	raw, _ := strconv.Unquote(field.Tag.Value)
	tag := reflect.StructTag(raw).Get("json")
	name, opts, _ := strings.Cut(tag, ",")
	if name == "" || name == "-" || name == "api_key" {
		return "", false, false
	}
	return name, strings.Contains(","+opts+",", ",omitempty,"), true
}

func (r *registry) writeInterface(buf *bytes.Buffer, t target) error {
	d, ok := r.structs[t.key]
	if !ok {
		return fmt.Errorf("struct %s not found", t.key)
	}
	required := map[string]bool{}
	for _, f := range t.required {
		required[f] = true
	}

	fmt.Fprintf(buf, "/** Generated from Go struct: %s */\n", t.key)
	fmt.Fprintf(buf, "export interface %s {\n", t.tsName)
	for _, field := range d.st.Fields.List {
		name, _, ok := jsonField(field)
		if !ok {
			continue
		}
		opt := "?"
		if required[name] {
			opt = ""
		}
		fmt.Fprintf(buf, "  %s%s: %s\n", name, opt, r.tsType(field.Type, d))
	}
	buf.WriteString("}\n\n")
	return nil
}

func writeUnion(buf *bytes.Buffer, name string, shapes []messageShape) {
	fmt.Fprintf(buf, "export type %s =\n", name)
	for _, m := range shapes {
		if m.payload == "" {
			fmt.Fprintf(buf, "  | { type: '%s' }\n", m.msgType)
			continue
		}
		fmt.Fprintf(buf, "  | { type: '%s'; payload: %s }\n", m.msgType, m.payload)
	}
	buf.WriteString("\n")
}

func generate(root string) ([]byte, error) {
	reg := newRegistry()
	if err := reg.load(root); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString("// Code generated by cmd/typegen; DO NOT EDIT.\n")
	buf.WriteString("// Regenerate: go run ./cmd/typegen -out web/src/types/generated.ts\n\n")
	for _, t := range targets {
		if err := reg.writeInterface(&buf, t); err != nil {
			return nil, err
		}
	}
	writeUnion(&buf, "ClientMessage", clientMessages)
	writeUnion(&buf, "ServerMessage", serverMessages)
	return buf.Bytes(), nil
}

func main() {
	outPath := flag.String("out", "web/src/types/generated.ts", "output TypeScript file path")
	flag.Parse()

	root, err := os.Getwd()
	if err != nil {
		fatal("getwd: %v", err)
	}
	out, err := generate(root)
	if err != nil {
		fatal("%v", err)
	}

	path := *outPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fatal("mkdir: %v", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		fatal("write: %v", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d bytes)\n", path, len(out))
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "typegen: "+format+"\n", args...)
	os.Exit(1)
}
