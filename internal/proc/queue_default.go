//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package proc

var capture backend = queueCapture
