//go:build !linux && !darwin && !freebsd

package terminal

func (w *pagingWriter) getWindowSize() {
	w.lines, w.columns = 24, 80
}
