package classify

// Bảng ngôn ngữ lập trình. Có mặt một mục ở đây là kết luận repo chứa code.
var codeLanguageTable = []string{
	"ABAP", "ActionScript", "Ada", "Agda", "Apex", "AppleScript", "Assembly",
	"AutoHotkey", "Awk", "Ballerina", "Batchfile", "C", "C#", "C++", "Clojure",
	"CMake", "COBOL", "CoffeeScript", "Common Lisp", "Crystal", "Cython", "D",
	"Dart", "Dockerfile", "Elixir", "Elm", "Emacs Lisp", "Erlang", "F#",
	"Fortran", "GDScript", "GLSL", "Go", "Groovy", "Hack", "Haskell", "Haxe",
	"HCL", "Java", "JavaScript", "Julia", "Jupyter Notebook", "Kotlin", "Lua",
	"Makefile", "MATLAB", "Nim", "Objective-C", "Objective-C++", "OCaml",
	"Pascal", "Perl", "PHP", "PowerShell", "Prolog", "Puppet", "PureScript",
	"Python", "R", "Racket", "Ruby", "Rust", "Scala", "Scheme", "Shell",
	"Smalltalk", "Solidity", "Swift", "Tcl", "TypeScript", "Vala", "VBA",
	"Verilog", "VHDL", "Vim Script", "Visual Basic", "Zig",
}

// Bảng ngôn ngữ markup / dữ liệu, một mình chúng không chứng minh repo là code.
var noncodeLanguageTable = []string{
	"AsciiDoc", "BibTeX", "CSS", "CSV", "HTML", "INI", "JSON", "Markdown",
	"Org", "PostScript", "reStructuredText", "Rich Text Format", "SCSS",
	"Sass", "SVG", "TeX", "Text", "TOML", "XML", "XSLT", "YAML",
}

// Đuôi file source code, dùng khi API không trả về ngôn ngữ.
var codeExtensionTable = []string{
	"asm", "c", "cc", "clj", "cpp", "cs", "cxx", "d", "dart", "el", "erl",
	"ex", "exs", "f", "f90", "fs", "go", "groovy", "h", "hh", "hpp", "hs",
	"java", "jl", "js", "jsx", "kt", "lisp", "lua", "m", "ml", "nim", "pas",
	"php", "pl", "pm", "py", "r", "rb", "rkt", "rs", "sc", "scala", "scm",
	"sh", "sql", "swift", "tcl", "ts", "tsx", "v", "vb", "zig",
}

// File thuần tài liệu hay gặp ở root repo.
var docFileTable = []string{
	"readme", "readme.md", "readme.rst", "readme.txt", "license",
	"license.md", "license.txt", "copying", "authors", "contributors",
	"changelog", "changelog.md", "notice", "code_of_conduct.md",
	"contributing.md", ".gitignore", ".gitattributes",
}
