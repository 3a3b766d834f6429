//go:build !js_eval

package paramgrid

// NewJSEvaluator returns nil unless the module is built with the js_eval tag.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = collectJSOptions(opts)
	return nil
}

func jsEvaluatorAvailable() bool { return false }
