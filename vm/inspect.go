package vm

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// The inspector prints values the way node's util.inspect does with its
// default options: depth 2, compact 3, break length 80.
const (
	inspectDepth       = 2
	inspectCompact     = 3
	inspectBreakLength = 80
	inspectMaxArray    = 100
)

var identifierKey = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z_0-9]*$`)

// Inspect renders v for display. Strings are quoted.
func Inspect(v Value) string {
	in := &inspector{circular: make(map[*Object]int)}
	return in.formatValue(v, 0)
}

// FormatLog renders console.log arguments: a leading format string is
// expanded, strings print raw and everything else is inspected.
func FormatLog(r *Realm, args []Value) string {
	if len(args) == 0 {
		return ""
	}
	var parts []string
	rest := args
	if s, ok := args[0].(string); ok && strings.Contains(s, "%") && len(args) > 1 {
		var used int
		s, used = expandFormat(r, s, args[1:])
		parts = append(parts, s)
		rest = args[1+used:]
	} else {
		rest = args
	}
	for _, a := range rest {
		if s, ok := a.(string); ok {
			parts = append(parts, s)
		} else {
			parts = append(parts, Inspect(a))
		}
	}
	return strings.Join(parts, " ")
}

// expandFormat substitutes %s, %d, %i, %f, %o, %O, %j and %c directives.
func expandFormat(r *Realm, format string, args []Value) (string, int) {
	var sb strings.Builder
	used := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 >= len(format) {
			sb.WriteByte(c)
			continue
		}
		verb := format[i+1]
		if verb == '%' {
			sb.WriteByte('%')
			i++
			continue
		}
		if used >= len(args) || !strings.ContainsRune("sdifoOjc", rune(verb)) {
			sb.WriteByte(c)
			continue
		}
		a := args[used]
		used++
		i++
		switch verb {
		case 's':
			switch x := a.(type) {
			case string:
				sb.WriteString(x)
			case *Object, *Symbol:
				sb.WriteString(Inspect(x))
			default:
				sb.WriteString(r.ToString(x))
			}
		case 'd', 'i', 'f':
			var n float64
			if _, ok := a.(*Object); ok {
				n = math.NaN()
			} else {
				n = r.ToNumber(a)
			}
			if verb == 'i' && !math.IsNaN(n) && !math.IsInf(n, 0) {
				n = math.Trunc(n)
			}
			sb.WriteString(FormatNumber(n))
		case 'o', 'O', 'j':
			sb.WriteString(Inspect(a))
		case 'c':
		}
	}
	return sb.String(), used
}

// inspectShort names a value in an error message.
func inspectShort(v Value) string {
	obj, ok := v.(*Object)
	if !ok {
		return Inspect(v)
	}
	if obj.Func != nil {
		if obj.Func.Name == "" {
			return "(anonymous function)"
		}
		return obj.Func.Name
	}
	if obj.IsArray() {
		return "object"
	}
	name := constructorName(obj)
	if name == "" {
		name = "Object"
	}
	return "#<" + name + ">"
}

// ---------------------------------------------------------------------------
// inspector
// ---------------------------------------------------------------------------

type inspector struct {
	seen         []*Object
	circular     map[*Object]int
	indentation  int
	currentDepth int
}

func (in *inspector) formatValue(v Value, level int) string {
	obj, ok := v.(*Object)
	if !ok {
		return formatPrimitive(v)
	}
	for _, s := range in.seen {
		if s == obj {
			idx, ok := in.circular[obj]
			if !ok {
				idx = len(in.circular) + 1
				in.circular[obj] = idx
			}
			return "[Circular *" + strconv.Itoa(idx) + "]"
		}
	}
	return in.formatRaw(obj, level)
}

func formatPrimitive(v Value) string {
	switch x := v.(type) {
	case string:
		return quoteString(x)
	case float64:
		if x == 0 && math.Signbit(x) {
			return "-0"
		}
		return FormatNumber(x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	case undefinedType:
		return "undefined"
	case nullType:
		return "null"
	case *Symbol:
		return x.String()
	}
	return "undefined"
}

// quoteString picks single quotes unless the string contains them.
func quoteString(s string) string {
	quote := byte('\'')
	if strings.IndexByte(s, '\'') >= 0 {
		switch {
		case strings.IndexByte(s, '"') < 0:
			quote = '"'
		case strings.IndexByte(s, '`') < 0 && !strings.Contains(s, "${"):
			quote = '`'
		}
	}
	var sb strings.Builder
	sb.WriteByte(quote)
	for _, c := range s {
		switch c {
		case rune(quote):
			sb.WriteByte('\\')
			sb.WriteRune(c)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		case '\v':
			sb.WriteString(`\v`)
		default:
			if c < 0x20 || c == 0x7f {
				sb.WriteString(`\x`)
				sb.WriteString(strings.ToUpper(strconv.FormatInt(int64(c)+0x100, 16)[1:]))
				continue
			}
			sb.WriteRune(c)
		}
	}
	sb.WriteByte(quote)
	return sb.String()
}

// constructorName finds the name of the nearest constructor on the
// prototype chain.
func constructorName(obj *Object) string {
	for p := obj.Proto; p != nil; p = p.Proto {
		if c, ok := p.GetOwn("constructor"); ok {
			if fn, ok := c.(*Object); ok && fn.Func != nil {
				return fn.Func.Name
			}
		}
	}
	return ""
}

func functionBase(obj *Object) string {
	f := obj.Func
	if f.Class {
		name := f.Name
		if name == "" {
			name = "(anonymous)"
		}
		base := "[class " + name
		if f.Parent != nil && f.Parent.Func != nil && f.Parent.Func.Name != "" {
			base += " extends " + f.Parent.Func.Name
		}
		return base + "]"
	}
	kind := "Function"
	switch f.Kind {
	case FunctionGenerator:
		kind = "GeneratorFunction"
	case FunctionAsync, FunctionAsyncLambda:
		kind = "AsyncFunction"
	case FunctionAsyncGenerator:
		kind = "AsyncGeneratorFunction"
	}
	if f.Name == "" {
		return "[" + kind + " (anonymous)]"
	}
	return "[" + kind + ": " + f.Name + "]"
}

func formatKey(key PropertyKey) string {
	switch k := key.(type) {
	case *Symbol:
		return "[" + k.String() + "]"
	case string:
		if identifierKey.MatchString(k) {
			return k
		}
		return quoteString(k)
	}
	return ""
}

const (
	kindObject = iota
	kindArray
)

func (in *inspector) formatRaw(obj *Object, level int) string {
	entries := obj.entries()
	name := constructorName(obj)

	var base string
	braces := [2]string{"{", "}"}
	kind := kindObject
	var output []string

	switch {
	case obj.IsArray():
		prefix := ""
		if name != "Array" && name != "" {
			prefix = name + "(" + strconv.Itoa(len(obj.Array)) + ") "
		}
		braces = [2]string{prefix + "[", "]"}
		if len(obj.Array) == 0 && len(entries) == 0 {
			return braces[0] + "]"
		}
		kind = kindArray
	case obj.Func != nil:
		base = functionBase(obj)
		if len(entries) == 0 {
			return base
		}
	case obj.Class == ClassError:
		stack, _ := obj.Get("stack").(string)
		if stack == "" {
			stack = "Error"
		}
		if in.indentation != 0 {
			stack = strings.ReplaceAll(stack, "\n", "\n"+strings.Repeat(" ", in.indentation))
		}
		base = stack
		if len(entries) == 0 {
			return base
		}
	case obj.Class == ClassPromise:
		braces[0] = "Promise {"
	case obj.Class == ClassGenerator:
		braces[0] = "Object [Generator] {"
	case obj.Class == ClassAsyncGenerator:
		braces[0] = "Object [AsyncGenerator] {"
	case obj.Class == ClassIterator:
		braces[0] = "Object [Array Iterator] {"
	default:
		switch {
		case obj.Proto == nil:
			braces[0] = "[Object: null prototype] {"
		case name != "Object" && name != "":
			braces[0] = name + " {"
		}
	}
	if kind == kindObject && obj.Class != ClassPromise && len(entries) == 0 && base == "" {
		return braces[0] + "}"
	}

	if level > inspectDepth {
		label := name
		if label == "" {
			label = "Object"
		}
		return "[" + label + "]"
	}

	level++
	in.seen = append(in.seen, obj)
	in.currentDepth = level

	if kind == kindArray {
		n := len(obj.Array)
		if n > inspectMaxArray {
			n = inspectMaxArray
		}
		for i := 0; i < n; i++ {
			in.indentation += 2
			output = append(output, in.formatValue(obj.Array[i], level))
			in.indentation -= 2
		}
		if rest := len(obj.Array) - n; rest > 0 {
			s := "s"
			if rest == 1 {
				s = ""
			}
			output = append(output, "... "+strconv.Itoa(rest)+" more item"+s)
		}
	}
	if p, ok := obj.Internal.(*Promise); ok {
		in.indentation += 2
		switch p.State {
		case PromisePending:
			output = append(output, "<pending>")
		case PromiseFulfilled:
			output = append(output, in.formatValue(p.Value, level))
		case PromiseRejected:
			output = append(output, "<rejected> "+in.formatValue(p.Value, level))
		}
		in.indentation -= 2
	}
	for _, e := range entries {
		in.indentation += 2
		str := in.formatValue(e.value, level)
		in.indentation -= 2
		output = append(output, formatKey(e.key)+": "+str)
	}

	in.seen = in.seen[:len(in.seen)-1]

	res := in.reduceToSingleString(output, base, braces, kind, level, obj)
	if idx, ok := in.circular[obj]; ok {
		res = "<ref *" + strconv.Itoa(idx) + "> " + res
	}
	return res
}

func (in *inspector) reduceToSingleString(output []string, base string, braces [2]string, kind, level int, obj *Object) string {
	entries := len(output)
	if kind == kindArray && entries > 6 {
		output = in.groupArrayElements(output, obj)
	}
	if in.currentDepth-level < inspectCompact && entries == len(output) {
		start := len(output) + in.indentation + utf8.RuneCountInString(braces[0]) + utf8.RuneCountInString(base) + 10
		if in.isBelowBreakLength(output, start, base) {
			joined := strings.Join(output, ", ")
			if !strings.Contains(joined, "\n") {
				prefix := ""
				if base != "" {
					prefix = base + " "
				}
				return prefix + braces[0] + " " + joined + " " + braces[1]
			}
		}
	}
	indentation := "\n" + strings.Repeat(" ", in.indentation)
	prefix := ""
	if base != "" {
		prefix = base + " "
	}
	return prefix + braces[0] + indentation + "  " + strings.Join(output, ","+indentation+"  ") + indentation + braces[1]
}

func (in *inspector) isBelowBreakLength(output []string, start int, base string) bool {
	total := len(output) + start
	if total+len(output) > inspectBreakLength {
		return false
	}
	for _, s := range output {
		total += utf8.RuneCountInString(s)
		if total > inspectBreakLength {
			return false
		}
	}
	return base == "" || !strings.Contains(base, "\n")
}

// groupArrayElements lays out long arrays of short items in columns.
func (in *inspector) groupArrayElements(output []string, obj *Object) []string {
	totalLength := 0
	maxLength := 0
	outputLength := len(output)
	if obj != nil && len(obj.Array) > inspectMaxArray {
		outputLength--
	}
	const separatorSpace = 2
	dataLen := make([]int, outputLength)
	for i := 0; i < outputLength; i++ {
		l := utf8.RuneCountInString(output[i])
		dataLen[i] = l
		totalLength += l + separatorSpace
		if maxLength < l {
			maxLength = l
		}
	}
	actualMax := maxLength + separatorSpace
	if actualMax*3+in.indentation >= inspectBreakLength ||
		(float64(totalLength)/float64(actualMax) <= 5 && maxLength > 6) {
		return output
	}

	averageBias := math.Sqrt(float64(actualMax) - float64(totalLength)/float64(len(output)))
	biasedMax := math.Max(float64(actualMax)-3-averageBias, 1)
	columns := minInt(
		int(math.Round(math.Sqrt(2.5*biasedMax*float64(outputLength))/biasedMax)),
		(inspectBreakLength-in.indentation)/actualMax,
		inspectCompact*4,
		15,
	)
	if columns <= 1 {
		return output
	}

	var maxLineLength []int
	for i := 0; i < columns; i++ {
		lineLength := 0
		for j := i; j < outputLength; j += columns {
			if dataLen[j] > lineLength {
				lineLength = dataLen[j]
			}
		}
		maxLineLength = append(maxLineLength, lineLength+separatorSpace)
	}

	padStart := true
	if obj != nil {
		for _, v := range obj.Array {
			if _, ok := v.(float64); !ok {
				padStart = false
				break
			}
		}
	}

	var tmp []string
	for i := 0; i < outputLength; i += columns {
		max := minInt(i+columns, outputLength)
		var sb strings.Builder
		j := i
		for ; j < max-1; j++ {
			cell := output[j] + ", "
			sb.WriteString(pad(cell, maxLineLength[j-i], padStart))
		}
		if padStart {
			sb.WriteString(pad(output[j], maxLineLength[j-i]-separatorSpace, true))
		} else {
			sb.WriteString(output[j])
		}
		tmp = append(tmp, sb.String())
	}
	if outputLength < len(output) {
		tmp = append(tmp, output[outputLength])
	}
	return tmp
}

func pad(s string, width int, start bool) string {
	n := width - utf8.RuneCountInString(s)
	if n <= 0 {
		return s
	}
	if start {
		return strings.Repeat(" ", n) + s
	}
	return s + strings.Repeat(" ", n)
}

func minInt(first int, rest ...int) int {
	m := first
	for _, v := range rest {
		if v < m {
			m = v
		}
	}
	return m
}
