package types

// GlobalFlags holds the persistent command-line flags
type GlobalFlags struct {
	Config    string
	Verbose   bool
	Quiet     bool
	Debug     bool
	NoBrowser bool
}
