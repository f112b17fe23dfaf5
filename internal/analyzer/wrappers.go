package analyzer

// wrapper describes a command that runs another command given as its
// arguments, e.g. "sudo rm -rf /".
type wrapper struct {
	// argFlags consume the following word.
	argFlags []string
	// scriptFlags take a shell script as their argument.
	scriptFlags []string
	// lookupFlags turn the wrapper into a lookup that runs nothing.
	lookupFlags []string
	// positional operands precede the wrapped command.
	positional int
	// assignments allows NAME=value words before the wrapped command.
	assignments bool
}

var wrappers = map[string]wrapper{
	"sudo": {argFlags: []string{
		"-u", "-g", "-p", "-C", "-D", "-r", "-t", "-U", "-T",
		"--user", "--group", "--prompt", "--close-from", "--chdir",
		"--role", "--type", "--other-user", "--command-timeout", "--host",
	}},
	"doas":    {argFlags: []string{"-u", "-C"}},
	"env":     {argFlags: []string{"-u", "--unset", "-C", "--chdir"}, scriptFlags: []string{"-S", "--split-string"}, assignments: true},
	"timeout": {argFlags: []string{"-s", "--signal", "-k", "--kill-after"}, positional: 1},
	"nice":    {argFlags: []string{"-n", "--adjustment"}},
	"ionice":  {argFlags: []string{"-c", "--class", "-n", "--classdata"}},
	"nohup":   {},
	"setsid":  {},
	"stdbuf":  {argFlags: []string{"-i", "-o", "-e", "--input", "--output", "--error"}},
	"xargs": {argFlags: []string{
		"-a", "-d", "-E", "-I", "-L", "-n", "-P", "-s",
		"--arg-file", "--delimiter", "--eof", "--replace",
		"--max-lines", "--max-args", "--max-procs", "--max-chars",
	}},
	"command": {lookupFlags: []string{"-v", "-V"}},
	"builtin": {},
	"exec":    {argFlags: []string{"-a"}},
	"time":    {argFlags: []string{"-f", "--format", "-o", "--output"}},
	"chroot":  {positional: 1},
	"watch":   {argFlags: []string{"-n", "--interval"}},
}

var shells = map[string]bool{
	"sh": true, "bash": true, "zsh": true, "dash": true,
	"ksh": true, "ash": true, "mksh": true, "fish": true,
}

func isShell(action string) bool {
	return shells[action]
}

// shellScriptIndex finds the script operand of "sh -c script". It reports
// false when the shell is not given -c, e.g. "bash script.sh".
func shellScriptIndex(args []string) (int, bool) {
	sawC := false
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--":
			if sawC && i+1 < len(args) {
				return i + 1, true
			}
			return 0, false
		case a == "-o" || a == "+o" || a == "--rcfile" || a == "--init-file":
			i++
		case len(a) > 1 && (a[0] == '-' || a[0] == '+'):
			if a[0] == '-' && a[1] != '-' {
				for _, r := range a[1:] {
					if r == 'c' {
						sawC = true
					}
				}
			}
		default:
			if sawC {
				return i, true
			}
			return 0, false
		}
	}
	return 0, false
}
