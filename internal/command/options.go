package command

import "strings"

// pathOption describes one option-with-value pair whose value is a path
// that step 2 of CommandParser needs to rewrite in place. Mirrors the
// GCC_OPTION_IS_INPUT_PATH / GCC_OPTION_IS_INPUT_PATH2 entries of
// parsedcommand.cpp's option table, collapsed into data instead of macros.
type pathOption struct {
	flag  string // e.g. "-I"
	fused bool   // recognizes "-Ifoo" glued to the flag
	equal bool   // recognizes "--flag=foo"
}

// pathOptionsFor returns the path-with-value options a flavor's compiler
// accepts. GCC and Clang share a grammar in the original; SunStudio and
// AIX trim it to what their own driver documents.
func pathOptionsFor(f Flavor) []pathOption {
	switch f {
	case FlavorGCC, FlavorClang:
		return gccPathOptions
	case FlavorSunStudio:
		return sunPathOptions
	case FlavorAIX:
		return aixPathOptions
	default:
		return nil
	}
}

var gccPathOptions = []pathOption{
	{flag: "-I", fused: true},
	{flag: "-L", fused: true},
	{flag: "-B", fused: true},
	{flag: "-isystem", fused: false},
	{flag: "-iquote", fused: false},
	{flag: "-idirafter", fused: false},
	{flag: "-imacros", fused: false},
	{flag: "-include", fused: false},
	{flag: "-iprefix", fused: false},
	{flag: "-isysroot", fused: false},
	{flag: "--sysroot", equal: true},
}

var sunPathOptions = []pathOption{
	{flag: "-I", fused: true},
	{flag: "-L", fused: true},
}

var aixPathOptions = []pathOption{
	{flag: "-I", fused: true},
	{flag: "-L", fused: true},
	{flag: "-qcinc", equal: true},
}

// rewritePathOption tries to match token against opt. ok is false if token
// doesn't match this option's shape at all. rewrite is called (if non-nil)
// on whatever path text was found, and the rebuilt token is returned.
func rewritePathOption(token string, opt pathOption, rewrite func(string) string) (string, bool) {
	if opt.equal {
		prefix := opt.flag + "="
		if strings.HasPrefix(token, prefix) {
			return prefix + rewrite(strings.TrimPrefix(token, prefix)), true
		}
		return "", false
	}
	if token == opt.flag {
		return token, true // caller must also rewrite the following argv entry
	}
	if opt.fused && strings.HasPrefix(token, opt.flag) && len(token) > len(opt.flag) {
		return opt.flag + rewrite(strings.TrimPrefix(token, opt.flag)), true
	}
	return "", false
}
