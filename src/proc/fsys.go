package proc

import "fs"

// rootFs is the mounted filesystem every process's paths resolve
// against (spec.md §6 boot sequence: "mount root filesystem"). Set
// once at boot by SetFS; read by exec, exit (releasing cwd), and
// package sysc's path-taking syscalls.
var rootFs *fs.Fs_t

// / SetFS installs the mounted root filesystem. Called once during boot,
// / after fs.MkFs and before Userinit.
func SetFS(fs_ *fs.Fs_t) {
	rootFs = fs_
}

// / FS returns the mounted root filesystem, for package sysc's path
// / syscalls (open/mkdir/mknod/link/unlink/chdir/stat).
func FS() *fs.Fs_t {
	return rootFs
}
