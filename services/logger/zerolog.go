package logsvc

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/urfu-lab/studyhub/core"
)

type FileConfig struct {
	Dir         string // empty: stdout only
	FileName    string
	MaxFileSize int64 // bytes; the file is rotated to "<name>.1" once it grows past it
}

// NewZerolog returns a zerolog logger writing to stdout and, when cfg.Dir is set, to a size-capped file.
func NewZerolog(cfg FileConfig, level zerolog.Level) (zerolog.Logger, io.Closer, error) {
	var (
		writer io.Writer = os.Stdout
		closer io.Closer = io.NopCloser(nil)
	)
	if cfg.Dir != "" {
		file, err := openRotatingFile(cfg)
		if err != nil {
			return zerolog.Logger{}, nil, err
		}
		writer = io.MultiWriter(file, os.Stdout)
		closer = file
	}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger(), closer, nil
}

type rotatingFile struct {
	mu      sync.Mutex
	path    string
	maxSize int64
	size    int64
	file    *os.File
}

func openRotatingFile(cfg FileConfig) (*rotatingFile, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, errors.Wrap(err, "creating log directory")
	}
	name := cfg.FileName
	if name == "" {
		name = "app.log"
	}
	rf := &rotatingFile{path: filepath.Join(cfg.Dir, name), maxSize: cfg.MaxFileSize}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

func (rf *rotatingFile) open() error {
	file, err := os.OpenFile(rf.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "opening log file")
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return errors.Wrap(err, "reading log file info")
	}
	rf.file, rf.size = file, info.Size()
	return nil
}

func (rf *rotatingFile) rotate() error {
	if err := rf.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(rf.path, rf.path+".1"); err != nil {
		return err
	}
	return rf.open()
}

func (rf *rotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.maxSize > 0 && rf.size+int64(len(p)) > rf.maxSize && rf.size > 0 {
		if err := rf.rotate(); err != nil {
			return 0, errors.Wrap(err, "rotating log file")
		}
	}
	n, err := rf.file.Write(p)
	rf.size += int64(n)
	return n, err
}

func (rf *rotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	return rf.file.Close()
}

// ZerologLogger adapts a zerolog.Logger to core.Logger. Errors among args are attached to the event.
type ZerologLogger struct {
	log zerolog.Logger
}

var _ core.Logger = (*ZerologLogger)(nil)

func NewZerologLogger(log zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{log: log}
}

func (l ZerologLogger) write(ev *zerolog.Event, msg string, args []interface{}) {
	extra := make([]interface{}, 0, len(args))
	for _, arg := range args {
		switch v := arg.(type) {
		case error:
			ev = ev.Err(v)
		case map[string]interface{}:
			ev = ev.Fields(v)
		default:
			extra = append(extra, v)
		}
	}
	if len(extra) > 0 {
		ev = ev.Str("args", fmt.Sprint(extra...))
	}
	ev.Msg(msg)
}

func (l ZerologLogger) Debug(msg string, args ...interface{}) { l.write(l.log.Debug(), msg, args) }
func (l ZerologLogger) Info(msg string, args ...interface{})  { l.write(l.log.Info(), msg, args) }
func (l ZerologLogger) Warn(msg string, args ...interface{})  { l.write(l.log.Warn(), msg, args) }
func (l ZerologLogger) Error(msg string, args ...interface{}) { l.write(l.log.Error(), msg, args) }
func (l ZerologLogger) Fatal(msg string, args ...interface{}) { l.write(l.log.Fatal(), msg, args) }
