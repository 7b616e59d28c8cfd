// Package emit renders IR modules as portable C11 over the fixed runtime
// symbol table. The emitter never inlines runtime logic: every service goes
// through a daisy_rt_* call.
package emit

// Runtime symbol table of the services the emitter names directly. The
// emitter also writes the --rt-checks guards (daisy_rt_check_*), the tensor
// and vec releases, and daisy_rt_<name> for builtins lowered as generic
// rt.<name> ops; those names are not listed here. Boxed payloads travel as dsy_box, a union
// declared in daisy_runtime.h together with the value types:
//
//	dsy_int      int64_t
//	dsy_bool     int64_t (0|1)
//	dsy_str      char* owned by the runtime string allocator
//	dsy_buffer   struct { void *data; int64_t size; }
//	dsy_view     struct { void *data; int64_t size; int64_t start, end; }
//	dsy_tensor   struct { void *data; int64_t rows, cols; }
//	dsy_channel  opaque pointer
//	dsy_vec      opaque pointer
//	dsy_result   struct { int64_t tag; dsy_box val; }
//	dsy_option   struct { int64_t tag; dsy_box val; }
const (
	symBufferCreate  = "daisy_rt_buffer_create"
	symBufferRelease = "daisy_rt_buffer_release"
	symBufferSize    = "daisy_rt_buffer_size"
	symViewBorrow    = "daisy_rt_view_borrow"
	symViewBorrowAll = "daisy_rt_view_borrow_all"
	symViewRelease   = "daisy_rt_view_release"

	symTensorCreate = "daisy_rt_tensor_create"
	symTensorMatmul = "daisy_rt_tensor_matmul"
	symTensorFused  = "daisy_rt_tensor_matmul_fused"

	symChannelCreate  = "daisy_rt_channel_create"
	symChannelSend    = "daisy_rt_channel_send"
	symChannelRecv    = "daisy_rt_channel_recv"
	symChannelClose   = "daisy_rt_channel_close"
	symChannelRelease = "daisy_rt_channel_release"

	symVecNew  = "daisy_rt_vec_new"
	symVecPush = "daisy_rt_vec_push"
	symVecGet  = "daisy_rt_vec_get"
	symVecLen  = "daisy_rt_vec_len"

	symResultOk        = "daisy_rt_result_ok"
	symResultErr       = "daisy_rt_result_err"
	symResultIsOk      = "daisy_rt_result_is_ok"
	symResultUnwrap    = "daisy_rt_result_unwrap"
	symResultUnwrapErr = "daisy_rt_result_unwrap_err"
	symOptionSome      = "daisy_rt_option_some"
	symOptionNone      = "daisy_rt_option_none"
	symOptionIsSome    = "daisy_rt_option_is_some"
	symOptionUnwrap    = "daisy_rt_option_unwrap"

	symThreadSpawn     = "daisy_rt_thread_spawn"
	symThreadSpawnChan = "daisy_rt_thread_spawn_chan"

	symPrintInt  = "daisy_rt_print_int"
	symPrintBool = "daisy_rt_print_bool"
	symPrintStr  = "daisy_rt_print_str"
	symStrEq     = "daisy_rt_str_eq"
	symPanic     = "daisy_rt_panic"
	symRtFail    = "daisy_rt_fail"

	symBoxNew = "daisy_rt_box_new"
)

// guardedOps lists the IR ops that get a daisy_rt_check_* guard under
// --rt-checks, with the short tag passed to the check.
var guardedOps = map[string]string{
	"view.borrow": "view-range",
	"rt.view_get": "view-index",
	"rt.view_set": "view-index",
	"vec.get":     "vec-index",
}
