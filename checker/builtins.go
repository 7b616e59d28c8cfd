package checker

// Builtin describes one runtime-backed function visible to every module.
// Params may contain Param types; they unify against argument types at the
// call site. TypeParams lists parameters that may also be supplied
// explicitly, as in channel<int>().
type Builtin struct {
	Name       string
	TypeParams []string
	Params     []*Type
	Ret        *Type
}

var tParam = Param("T")

// Builtins is the fixed facade over the runtime symbol table. The C emitter
// maps each name to its runtime symbol; the checker only cares about
// signatures. ok/err/some/none/unwrap/spawn are resolved specially because
// they need expectation context or argument-shape dispatch.
var Builtins = map[string]*Builtin{
	"str_len":         {Name: "str_len", Params: []*Type{TStr}, Ret: TInt},
	"str_concat":      {Name: "str_concat", Params: []*Type{TStr, TStr}, Ret: TStr},
	"str_substr":      {Name: "str_substr", Params: []*Type{TStr, TInt, TInt}, Ret: TStr},
	"str_trim":        {Name: "str_trim", Params: []*Type{TStr}, Ret: TStr},
	"str_find":        {Name: "str_find", Params: []*Type{TStr, TStr}, Ret: TInt},
	"str_starts_with": {Name: "str_starts_with", Params: []*Type{TStr, TStr}, Ret: TBool},
	"str_char_at":     {Name: "str_char_at", Params: []*Type{TStr, TInt}, Ret: TStr},
	"str_to_int":      {Name: "str_to_int", Params: []*Type{TStr}, Ret: Result(TInt, TStr)},
	"int_to_str":      {Name: "int_to_str", Params: []*Type{TInt}, Ret: TStr},
	"bool_to_str":     {Name: "bool_to_str", Params: []*Type{TBool}, Ret: TStr},

	"buf_size":   {Name: "buf_size", Params: []*Type{TBuffer}, Ret: TInt},
	"str_len_of": {Name: "str_len_of", Params: []*Type{TBuffer}, Ret: TInt},
	"view_len":   {Name: "view_len", Params: []*Type{TView}, Ret: TInt},
	"view_get":   {Name: "view_get", Params: []*Type{TView, TInt}, Ret: TInt},
	"view_set":   {Name: "view_set", Params: []*Type{TView, TInt, TInt}, Ret: TUnit},

	"tensor": {Name: "tensor", Params: []*Type{TInt, TInt}, Ret: TTensor},
	"matmul": {Name: "matmul", Params: []*Type{TTensor, TTensor}, Ret: TTensor},

	"vec_new":  {Name: "vec_new", TypeParams: []string{"T"}, Params: nil, Ret: Vec(tParam)},
	"vec_push": {Name: "vec_push", Params: []*Type{Vec(tParam), tParam}, Ret: TUnit},
	"vec_get":  {Name: "vec_get", Params: []*Type{Vec(tParam), TInt}, Ret: tParam},
	"vec_len":  {Name: "vec_len", Params: []*Type{Vec(tParam)}, Ret: TInt},

	"channel": {Name: "channel", TypeParams: []string{"T"}, Params: nil, Ret: Channel(tParam)},
	"send":    {Name: "send", Params: []*Type{Channel(tParam), tParam}, Ret: TBool},
	"recv":    {Name: "recv", Params: []*Type{Channel(tParam)}, Ret: tParam},
	"close":   {Name: "close", Params: []*Type{Channel(tParam)}, Ret: TUnit},

	"is_ok":   {Name: "is_ok", Params: []*Type{Result(tParam, Param("E"))}, Ret: TBool},
	"is_some": {Name: "is_some", Params: []*Type{Option(tParam)}, Ret: TBool},

	"file_read":   {Name: "file_read", Params: []*Type{TStr}, Ret: Result(TStr, TStr)},
	"file_write":  {Name: "file_write", Params: []*Type{TStr, TStr}, Ret: Result(TInt, TStr)},
	"file_exists": {Name: "file_exists", Params: []*Type{TStr}, Ret: TBool},
	"file_delete": {Name: "file_delete", Params: []*Type{TStr}, Ret: Result(TInt, TStr)},
	"file_move":   {Name: "file_move", Params: []*Type{TStr, TStr}, Ret: Result(TInt, TStr)},
	"file_copy":   {Name: "file_copy", Params: []*Type{TStr, TStr}, Ret: Result(TInt, TStr)},
	"dir_create":  {Name: "dir_create", Params: []*Type{TStr}, Ret: Result(TInt, TStr)},
	"dir_exists":  {Name: "dir_exists", Params: []*Type{TStr}, Ret: TBool},

	"log_set_level": {Name: "log_set_level", Params: []*Type{TInt}, Ret: TUnit},
	"log_info":      {Name: "log_info", Params: []*Type{TStr}, Ret: TUnit},
	"log_warn":      {Name: "log_warn", Params: []*Type{TStr}, Ret: TUnit},
	"log_error":     {Name: "log_error", Params: []*Type{TStr}, Ret: TUnit},

	"net_connect": {Name: "net_connect", Params: []*Type{TStr, TInt}, Ret: Result(TInt, TStr)},
	"net_send":    {Name: "net_send", Params: []*Type{TInt, TStr}, Ret: Result(TInt, TStr)},
	"net_recv":    {Name: "net_recv", Params: []*Type{TInt, TInt}, Ret: Result(TStr, TStr)},
	"net_close":   {Name: "net_close", Params: []*Type{TInt}, Ret: TUnit},

	"last_error": {Name: "last_error", Params: nil, Ret: TStr},
	"panic":      {Name: "panic", Params: []*Type{TStr}, Ret: TUnit},
}
