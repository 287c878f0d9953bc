// Package emulator answers shell command lines with canned output from a
// fake Ubuntu host. Nothing here touches the real system.
package emulator

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	Hostname = "ubuntu-server"
	Kernel   = "5.4.0-74-generic"
)

// bootTime is fixed so that uptime only moves with the clock.
var bootTime = time.Date(2024, 1, 3, 4, 12, 0, 0, time.UTC)

type handler func(e *Emulator, args []string) (string, bool)

// Emulator maps a command line to canned output. It holds no session state;
// only date, uptime and w consult the clock.
type Emulator struct {
	now func() time.Time
}

func New() *Emulator {
	return &Emulator{now: time.Now}
}

// NewWithClock returns an Emulator whose time-dependent commands read now.
func NewWithClock(now func() time.Time) *Emulator {
	return &Emulator{now: now}
}

// Emulate returns the output for line. The second result is false when the
// command prints nothing. Exit commands are the caller's business.
func (e *Emulator) Emulate(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", false
	}
	cmd := strings.ToLower(fields[0])
	if h, ok := handlers[cmd]; ok {
		return h(e, fields[1:])
	}
	return notFound(fields[0]), true
}

func notFound(cmd string) string {
	return "bash: " + cmd + ": command not found"
}

func silent(*Emulator, []string) (string, bool) { return "", false }

func static(out string) handler {
	return func(*Emulator, []string) (string, bool) { return out, true }
}

var handlers map[string]handler

func init() {
	handlers = map[string]handler{
		"ls":       cmdLS,
		"dir":      cmdLS,
		"ll":       func(e *Emulator, args []string) (string, bool) { return cmdLS(e, append([]string{"-la"}, args...)) },
		"pwd":      static("/root"),
		"whoami":   static("root"),
		"id":       static("uid=0(root) gid=0(root) groups=0(root)"),
		"hostname": static(Hostname),
		"uname":    cmdUname,
		"uptime":   cmdUptime,
		"date":     cmdDate,
		"w":        cmdW,
		"who":      static("root     pts/0        " + bootTime.Format("2006-01-02 15:04") + " (10.0.2.2)"),
		"ps":       cmdPS,
		"netstat":  static(netstatOut),
		"ss":       static(ssOut),
		"ifconfig": static(ifconfigOut),
		"ip":       cmdIP,
		"df":       static(dfOut),
		"free":     static(freeOut),
		"cat":      cmdCat,
		"history":  static(historyOut),
		"echo":     cmdEcho,
		"env":      static(envOut),
		"printenv": static(envOut),
		"wget":     cmdWget,
		"curl":     cmdCurl,
		"sudo":     cmdSudo,
		"cd":       silent,
		"clear":    silent,
		"export":   silent,
		"unset":    silent,
		"true":     silent,
	}
}

func cmdLS(_ *Emulator, args []string) (string, bool) {
	long, all := false, false
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			continue
		}
		if strings.Contains(a, "l") {
			long = true
		}
		if strings.Contains(a, "a") {
			all = true
		}
	}
	switch {
	case long && all:
		return lsLongAll, true
	case long:
		return lsLong, true
	case all:
		return ".  ..  .bash_history  .bashrc  .cache  .profile  .ssh  backup  scripts", true
	default:
		return "backup  scripts", true
	}
}

func cmdUname(_ *Emulator, args []string) (string, bool) {
	if len(args) == 0 {
		return "Linux", true
	}
	switch args[0] {
	case "-a", "--all":
		return "Linux " + Hostname + " " + Kernel + " #84-Ubuntu SMP Fri May 28 16:28:37 UTC 2021 x86_64 x86_64 x86_64 GNU/Linux", true
	case "-r":
		return Kernel, true
	case "-s":
		return "Linux", true
	case "-n":
		return Hostname, true
	case "-m", "-p", "-i":
		return "x86_64", true
	case "-o":
		return "GNU/Linux", true
	default:
		return fmt.Sprintf("uname: invalid option -- '%s'\nTry 'uname --help' for more information.", strings.TrimLeft(args[0], "-")), true
	}
}

func (e *Emulator) uptimeLine() string {
	now := e.now().UTC()
	up := now.Sub(bootTime)
	if up < 0 {
		up = 0
	}
	days := int(up.Hours()) / 24
	hours := int(up.Hours()) % 24
	mins := int(up.Minutes()) % 60
	return fmt.Sprintf(" %s up %d days, %2d:%02d,  1 user,  load average: 0.08, 0.03, 0.01",
		now.Format("15:04:05"), days, hours, mins)
}

func cmdUptime(e *Emulator, _ []string) (string, bool) {
	return e.uptimeLine(), true
}

func cmdDate(e *Emulator, _ []string) (string, bool) {
	return e.now().UTC().Format("Mon Jan _2 15:04:05 UTC 2006"), true
}

func cmdW(e *Emulator, _ []string) (string, bool) {
	return e.uptimeLine() + "\n" +
		"USER     TTY      FROM             LOGIN@   IDLE   JCPU   PCPU WHAT\n" +
		"root     pts/0    10.0.2.2         " + e.now().UTC().Format("15:04") + "    0.00s  0.02s  0.00s w", true
}

func cmdPS(_ *Emulator, args []string) (string, bool) {
	if len(args) == 0 {
		return "    PID TTY          TIME CMD\n" +
			"   1342 pts/0    00:00:00 bash\n" +
			"   1377 pts/0    00:00:00 ps", true
	}
	return psAuxOut, true
}

func cmdIP(_ *Emulator, args []string) (string, bool) {
	if len(args) == 0 {
		return "Usage: ip [ OPTIONS ] OBJECT { COMMAND | help }", true
	}
	switch args[0] {
	case "a", "addr", "address":
		return ipAddrOut, true
	case "r", "route":
		return "default via 10.0.2.2 dev eth0 proto dhcp src 10.0.2.15 metric 100\n" +
			"10.0.2.0/24 dev eth0 proto kernel scope link src 10.0.2.15", true
	default:
		return fmt.Sprintf("Object \"%s\" is unknown, try \"ip help\".", args[0]), true
	}
}

func cmdCat(_ *Emulator, args []string) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	var out []string
	for _, path := range args {
		if content, ok := files[path]; ok {
			out = append(out, content)
			continue
		}
		out = append(out, "cat: "+path+": No such file or directory")
	}
	return strings.Join(out, "\n"), true
}

func cmdEcho(_ *Emulator, args []string) (string, bool) {
	r := strings.NewReplacer(`"`, "", `'`, "")
	return r.Replace(strings.Join(args, " ")), true
}

func cmdWget(_ *Emulator, args []string) (string, bool) {
	if len(args) == 0 {
		return "wget: missing URL\nUsage: wget [OPTION]... [URL]...", true
	}
	url := args[len(args)-1]
	host := strings.TrimPrefix(strings.TrimPrefix(url, "http://"), "https://")
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	return fmt.Sprintf("--2021-06-14 10:21:07--  %s\nResolving %s (%s)... failed: Temporary failure in name resolution.\nwget: unable to resolve host address '%s'", url, host, host, host), true
}

func cmdCurl(_ *Emulator, args []string) (string, bool) {
	if len(args) == 0 {
		return "curl: try 'curl --help' or 'curl --manual' for more information", true
	}
	url := args[len(args)-1]
	host := strings.TrimPrefix(strings.TrimPrefix(url, "http://"), "https://")
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	return "curl: (6) Could not resolve host: " + host, true
}

func cmdSudo(e *Emulator, args []string) (string, bool) {
	if len(args) == 0 {
		return "usage: sudo -h | -K | -k | -V", true
	}
	// already root: run the wrapped command
	switch strings.ToLower(args[0]) {
	case "exit", "logout":
		return "", false
	}
	return e.Emulate(strings.Join(args, " "))
}

// Commands lists the recognised command names in sorted order.
func Commands() []string {
	out := make([]string, 0, len(handlers))
	for name := range handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
