package log

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

type formatter struct {
	pattern string
	time    string
}

// Format expands the placeholders %time, %level, %field, %msg, %caller,
// %func, %goroutine and %n (newline) in the configured pattern.
func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	output := f.pattern
	output = strings.Replace(output, "%time", entry.Time.Format(f.time), 1)
	output = strings.Replace(output, "%level", entry.Level.String(), 1)
	output = strings.Replace(output, "%field", buildFields(entry), 1)
	output = strings.Replace(output, "%msg", entry.Message, 1)
	if strings.Contains(output, "%caller") {
		output = strings.Replace(output, "%caller", getCaller(entry), 1)
	}
	if strings.Contains(output, "%func") {
		output = strings.Replace(output, "%func", getFunc(entry), 1)
	}
	if strings.Contains(output, "%goroutine") {
		output = strings.Replace(output, "%goroutine", getGoroutineID(), 1)
	}
	output = strings.ReplaceAll(output, "%n", "\n")
	return []byte(output), nil
}

func trimPath(file string) string {
	if i := strings.LastIndex(file, "/"); i != -1 && i+1 < len(file) {
		return file[i+1:]
	}
	return file
}

// getCaller renders package/file:line.
func getCaller(entry *logrus.Entry) string {
	if entry.HasCaller() {
		pkg := ""
		if parts := strings.Split(entry.Caller.Function, "."); len(parts) > 1 {
			segs := strings.Split(parts[0], "/")
			pkg = segs[len(segs)-1]
		}
		return fmt.Sprintf("%s/%s:%d", pkg, trimPath(entry.Caller.File), entry.Caller.Line)
	}
	if _, file, line, ok := runtime.Caller(8); ok {
		return fmt.Sprintf("unknown/%s:%d", trimPath(file), line)
	}
	return "unknown"
}

func getFunc(entry *logrus.Entry) string {
	name := ""
	if entry.HasCaller() {
		name = entry.Caller.Function
	} else if pc, _, _, ok := runtime.Caller(8); ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			name = fn.Name()
		}
	}
	if name == "" {
		return "unknown"
	}
	if i := strings.LastIndex(name, "."); i != -1 && i+1 < len(name) {
		return name[i+1:]
	}
	return name
}

func getGoroutineID() string {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	idField := strings.Fields(strings.TrimPrefix(string(buf[:n]), "goroutine "))
	if len(idField) > 0 {
		return idField[0]
	}
	return "unknown"
}

// buildFields renders key=value pairs sorted by key.
func buildFields(entry *logrus.Entry) string {
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		val, ok := entry.Data[k].(string)
		if !ok {
			val = fmt.Sprint(entry.Data[k])
		}
		fields = append(fields, k+"="+val)
	}
	return strings.Join(fields, ",")
}
