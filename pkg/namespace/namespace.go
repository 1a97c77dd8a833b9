// Package namespace maintains the keyword and user-defined symbol tables
// and reports name collisions and shadows as they are discovered.
package namespace

import (
	"sort"

	"github.com/ezraerb/CfunctionIndexer/pkg/config"
	"github.com/ezraerb/CfunctionIndexer/pkg/token"
	"github.com/ezraerb/CfunctionIndexer/pkg/util"
)

// NameSpace holds three symbol tables keyed by lexeme: the fixed C keyword
// list, the file/global scope list, and the local (function) scope list.
// Different roles with the same lexeme are intentionally indistinguishable
// to the tables, so clashes surface.
type NameSpace struct {
	globalList map[string]token.Token
	localList  map[string]token.Token
	cfg        *config.Config
}

func New(cfg *config.Config) *NameSpace {
	return &NameSpace{
		globalList: make(map[string]token.Token),
		localList:  make(map[string]token.Token),
		cfg:        cfg,
	}
}

// haveVarToken reports whether a table entry is variable-bearing.
func haveVarToken(t token.Token) bool {
	return t.Type == token.VarName || t.Type == token.TypeTok
}

// haveTypeToken reports whether a table entry declares a user-defined type.
func haveTypeToken(t token.Token) bool {
	return t.Type == token.TypeTok || t.Type == token.FuncTypedef
}

// ClearLocalNames drops every symbol with function scope.
func (n *NameSpace) ClearLocalNames() {
	n.localList = make(map[string]token.Token)
}

// ClearGlobalNames drops every user-defined symbol. A static prototype
// without a matching declaration is an error; one still present here was
// never matched.
func (n *NameSpace) ClearGlobalNames() {
	n.ClearLocalNames()
	names := make([]string, 0, len(n.globalList))
	for name := range n.globalList {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entry := n.globalList[name]
		if entry.Type == token.FuncProto && entry.Scope == token.FileScope {
			util.TokenWarn(n.cfg, config.WarnStaticNoDecl, entry,
				"Static prototype of ", " has no matching declaration")
		}
	}
	n.globalList = make(map[string]token.Token)
}

// Classify refines a fresh identifier token against the tables: keywords
// adopt the keyword meaning, known typedefs adopt the type meaning, and
// potential function calls pick up the scope of their earlier prototype or
// declaration when one exists.
func (n *NameSpace) Classify(testToken *token.Token) {
	if kw, ok := token.Keywords[testToken.Lexeme]; ok {
		testToken.AdoptMeaning(kw)
		return
	}

	localVar := false // name is a variable in local scope
	local, inLocal := n.localList[testToken.Lexeme]
	if inLocal {
		if local.Type == token.TypeTok { // locally defined typedef
			testToken.AdoptMeaning(local)
		} else {
			localVar = true
		}
	}

	/* Local vars can shadow function names. If the name is then used as a
	   function call, that is an error. This program is biased toward
	   believing a function call was intended in such cases, so scope info is
	   fetched even when the name is a local variable. */
	if !inLocal || localVar {
		global, inGlobal := n.globalList[testToken.Lexeme]
		switch {
		case !inGlobal:
			testToken.Scope = token.NoScope // can't determine its scope yet
		case haveTypeToken(global):
			if !localVar {
				testToken.AdoptMeaning(global)
			}
			// else it is shadowed; do nothing
		case !haveVarToken(global):
			// A potential function call; set its scope.
			/* Static prototypes are overridden by the scope of the actual
			   function declaration, so calls against them cannot resolve
			   yet. A missing declaration later in the file is an error
			   handled elsewhere. */
			if global.Type != token.FuncProto || global.Scope != token.FileScope {
				testToken.Scope = global.Scope
			} else {
				testToken.Scope = token.NoScope
			}
		}
	}
}

// IsKeyword reports whether the token is a keyword or a user-defined name
// that is not a variable.
func (n *NameSpace) IsKeyword(testToken token.Token) bool {
	/* Names are originally tokenized as identifiers. An identifier needs a
	   table lookup to find what it really is; for everything else the token
	   type decides. */
	if testToken.Type != token.Identifier {
		switch testToken.Type {
		case token.Literal, token.FuncDecl, token.FuncProto, token.FuncCall,
			token.FuncTypedef, token.TypeTok, token.TypedefTok, token.StaticTok,
			token.Compound, token.Control, token.Reserved:
			return true
		}
		return false
	}
	if kw, ok := token.Keywords[testToken.Lexeme]; ok && kw.Type != token.VarName {
		return true
	}
	if g, ok := n.globalList[testToken.Lexeme]; ok && g.Type != token.VarName {
		return true
	}
	l, ok := n.localList[testToken.Lexeme]
	return ok && l.Type != token.VarName
}

// Update enters a parsed name into the tables, reporting collisions that
// can affect the results. This is the defect-detection engine.
func (n *NameSpace) Update(testToken token.Token) {
	global, inGlobal := n.globalList[testToken.Lexeme]
	local, inLocal := n.localList[testToken.Lexeme]

	if testToken.Scope == token.LocalScope {
		// Local scope updates when the symbol is new or a typedef collided
		// with a varname.
		if !inLocal || (local.Type == token.VarName && testToken.Type == token.TypeTok) {
			/* A collision with a global symbol is a shadow. Warn when the
			   global is a function; shadowing by type is more serious than
			   by variable, because a type symbol used as a function is much
			   harder to check. */
			if inGlobal && !haveVarToken(global) {
				if testToken.Type == token.TypeTok {
					if global.Type == token.FuncTypedef {
						util.TokenWarn(n.cfg, config.WarnShadow, testToken, "Declaration of type ",
							" shadows function typedef with same name in outer scope")
					} else {
						util.TokenWarn(n.cfg, config.WarnShadow, testToken, "Declaration of type ",
							" shadows function with same name in outer scope")
					}
				} else if global.Type == token.FuncTypedef {
					util.TokenWarn(n.cfg, config.WarnShadow, testToken, "Local variable ",
						" shadows function typedef with same name in outer scope")
				} else {
					util.TokenWarn(n.cfg, config.WarnShadow, testToken, "Local variable ",
						" shadows function with same name in outer scope")
				}
			}
			n.localList[testToken.Lexeme] = testToken
		}
		return
	}

	// Symbol is file or global scope.
	if haveVarToken(testToken) {
		switch {
		case !inGlobal:
			n.globalList[testToken.Lexeme] = testToken
		case !haveVarToken(global):
			// Collision of a variable with a function.
			if global.Type == token.FuncTypedef {
				if testToken.Type == token.VarName {
					util.TokenWarn(n.cfg, config.WarnNameCollision, testToken, "Variable ",
						" uses name previously used as typedef for function")
				} else {
					util.TokenWarn(n.cfg, config.WarnNameCollision, testToken, "Type declaration ",
						" uses name previously used as typedef for function")
				}
			} else if testToken.Type == token.VarName {
				util.TokenWarn(n.cfg, config.WarnNameCollision, testToken, "Variable ",
					" uses name previously used as a function")
			} else {
				util.TokenWarn(n.cfg, config.WarnNameCollision, testToken, "Type declaration ",
					" uses name previously used as a function")
			}
		case global.Type == token.VarName && testToken.Type == token.TypeTok:
			// A var colliding with a typedef: the typedef wins.
			n.globalList[testToken.Lexeme] = testToken
		}
		return
	}

	// Function call, prototype, declaration, or function typedef.
	if inLocal {
		// Collision with a local name.
		/* With either a function call that was never declared, or a type
		   that was ignored due to a shadow, assume the conflict is due to
		   misuse of the local symbol. */
		if (inGlobal && haveTypeToken(global)) ||
			(testToken.Type == token.FuncCall && (!inGlobal || haveVarToken(global))) {
			if testToken.Type == token.FuncTypedef {
				util.TokenWarn(n.cfg, config.WarnNameCollision, testToken, "Typedef for function ",
					" uses name previously used as a local variable")
			} else {
				util.TokenWarn(n.cfg, config.WarnNameCollision, testToken, "Function ",
					" uses name previously used as a local variable")
			}
		} else if !inGlobal || haveVarToken(global) {
			// The collision is a shadow; warn when the shadow is new.
			if local.Type == token.TypeTok {
				if testToken.Type == token.FuncTypedef {
					util.TokenWarn(n.cfg, config.WarnShadow, testToken, "Declaration of type ",
						" shadows function typedef with same name in outer scope")
				} else {
					util.TokenWarn(n.cfg, config.WarnShadow, testToken, "Declaration of type ",
						" shadows function with same name in outer scope")
				}
			} else if testToken.Type == token.FuncTypedef {
				util.TokenWarn(n.cfg, config.WarnShadow, local, "Local variable ",
					" shadows function typedef with same name in outer scope")
			} else {
				util.TokenWarn(n.cfg, config.WarnShadow, local, "Local variable ",
					" shadows function with same name in outer scope")
			}
		}
	}

	if testToken.Type == token.FuncCall {
		/* A function call colliding with a type is ignored; warn when the
		   collision was not explained by a local shadow. */
		if inGlobal && haveTypeToken(global) {
			if !inLocal {
				util.TokenWarn(n.cfg, config.WarnNameCollision, global, "Type declaration ",
					" uses name previously used as a function")
			}
		} else if !inGlobal ||
			(global.Type != token.FuncProto && global.Type != token.FuncDecl) {
			/* The name is not in the table as a prototype or declaration,
			   so this is an undeclared function call. */
			util.TokenWarn(n.cfg, config.WarnNoPrototype, testToken, "Function call ",
				" has no prototype")
			if !inGlobal {
				n.globalList[testToken.Lexeme] = testToken
			} else if global.Type != token.FuncCall {
				// Complain unless the symbol was shadowed.
				if !inLocal {
					util.TokenWarn(n.cfg, config.WarnNameCollision, global, "Variable ",
						" uses name previously used as a function")
				}
				n.globalList[testToken.Lexeme] = testToken
			}
		}
		return
	}

	// Function prototype, declaration, or typedef.
	switch {
	case !inGlobal:
		n.globalList[testToken.Lexeme] = testToken

	case haveTypeToken(global):
		/* Colliding with a typedef means a local variable that shadowed the
		   typedef was redefined as a function declaration, which requires
		   the declaration to be in local scope and is almost certainly an
		   error. Lose the declaration. */
		if !inLocal { // the shadow case warned above
			if testToken.Type == token.FuncTypedef {
				if global.Type == token.FuncTypedef {
					util.TokenWarn(n.cfg, config.WarnDuplicateDecl, testToken,
						"Duplicate declaration of function typedef ", "")
				} else {
					util.TokenWarn(n.cfg, config.WarnNameCollision, global, "Type declaration ",
						" uses name previously used as typedef for function")
				}
			} else {
				util.TokenWarn(n.cfg, config.WarnNameCollision, global, "Type declaration ",
					" uses name previously used as a function")
			}
		}

	case haveVarToken(global):
		// A function colliding with a var: believe the function was meant.
		if testToken.Type == token.FuncTypedef {
			util.TokenWarn(n.cfg, config.WarnNameCollision, global, "Variable ",
				" uses name previously used as typedef for function")
		} else {
			util.TokenWarn(n.cfg, config.WarnNameCollision, global, "Variable ",
				" uses name previously used as a function")
		}
		n.globalList[testToken.Lexeme] = testToken

	case testToken.Type == token.FuncTypedef:
		// A function typedef colliding with a function declaration: the
		// declaration wins.
		util.TokenWarn(n.cfg, config.WarnNameCollision, testToken, "Type declaration ",
			" uses name previously used as a function")

	case global.Type == token.FuncCall:
		// The declaration for a previously undeclared function.
		n.globalList[testToken.Lexeme] = testToken

	case testToken.Type == token.FuncProto:
		if global.Type == token.FuncProto {
			// Prototype collided with prototype.
			/* If scope narrows, some already-resolved calls may carry the
			   wrong scope; warn about it. */
			if testToken.Scope == token.FileScope && global.Scope == token.GlobalScope {
				util.TokenWarn(n.cfg, config.WarnStaticAfterGlobal, testToken, "Static function ",
					" occurs after global prototype in same file.")
				n.globalList[testToken.Lexeme] = testToken
			} else {
				util.TokenWarn(n.cfg, config.WarnDuplicateProto, testToken, "Duplicate prototype of ", "")
			}
		} else {
			// Prototype collided with declaration.
			util.TokenWarn(n.cfg, config.WarnProtoAfterDecl, testToken, "Prototype for ",
				" occurs after declaration")
		}

	case global.Type == token.FuncProto:
		// Declaration collided with prototype.
		if testToken.Scope == token.FileScope && global.Scope == token.GlobalScope {
			util.TokenWarn(n.cfg, config.WarnStaticAfterGlobal, testToken, "Static function ",
				" occurs after global prototype in same file.")
		}
		n.globalList[testToken.Lexeme] = testToken

	default:
		// Declaration collided with declaration.
		if testToken.Scope == global.Scope {
			util.TokenWarn(n.cfg, config.WarnDuplicateDecl, testToken, "Duplicate declaration of ", "")
		} else {
			util.TokenWarn(n.cfg, config.WarnDuplicateDecl, testToken, "Duplicate declaration of ",
				", with different scope. File scope assumed.")
			// Assume file scope is the one wanted for calls in this file.
			if global.Scope == token.GlobalScope {
				n.globalList[testToken.Lexeme] = testToken
			}
		}
	}
}
