//go:build llama

package engine

// cgo link directives for the in-process llama runtime.
// - rpath of $ORIGIN so the runtime loader finds libllama.so and libggml*.so
//   next to the built binary (./bin).
// - -L${SRCDIR}/../../bin so the linker finds libllama.so at link time when
//   building the 'llama' variant.
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama
*/
import "C"
