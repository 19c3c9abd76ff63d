package core

// KeyEvent is a key press in the task input.
type KeyEvent struct {
	Key   string `json:"key"`
	Shift bool   `json:"shift"`
	Ctrl  bool   `json:"ctrl"`
}

// SubmitsTask reports whether the key press should submit the task and
// suppress the default behavior. Shift+Enter and Ctrl+Enter insert a line
// break instead.
func SubmitsTask(ev KeyEvent) bool {
	return ev.Key == "Enter" && !ev.Shift && !ev.Ctrl
}
