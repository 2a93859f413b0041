package analyzer

// stopWords is the fixed Spanish stop-word set shared by the standard and
// spanish analyzers.
var stopWords = map[string]struct{}{
	"el": {}, "la": {}, "los": {}, "las": {}, "un": {}, "una": {},
	"unos": {}, "unas": {}, "de": {}, "del": {}, "al": {}, "a": {},
	"en": {}, "y": {}, "o": {}, "u": {}, "e": {}, "que": {},
	"es": {}, "son": {}, "ser": {}, "fue": {}, "hay": {}, "está": {},
	"por": {}, "para": {}, "con": {}, "sin": {}, "sobre": {}, "entre": {},
	"se": {}, "su": {}, "sus": {}, "lo": {}, "le": {}, "les": {},
	"mi": {}, "tu": {}, "te": {}, "me": {}, "nos": {}, "ya": {},
	"no": {}, "sí": {}, "si": {}, "más": {}, "pero": {}, "como": {},
	"este": {}, "esta": {}, "esto": {}, "ese": {}, "esa": {}, "eso": {},
	"muy": {}, "también": {}, "cuando": {}, "donde": {}, "todo": {},
}
