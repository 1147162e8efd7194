package cmd

var (
	NewCommand       = newCommand
	ParseRatios      = parseRatios
	ParseEnabled     = parseEnabled
	StrToBool        = strToBool
	ScaleWholeTokens = scaleWholeTokens
)

type (
	Command = command
	Option  = option
)
