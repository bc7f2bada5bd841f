package lexer

import "fmt"

// ItemType identifies the type of a lexed item.
type ItemType int

const (
	ItemError        ItemType = iota // error occurred; value is the error text
	ItemBool                         // boolean constant
	ItemChar                         // printable ASCII character; grab bag for comma etc.
	ItemCharConstant                 // character constant
	ItemColonEquals                  // colon-equals (':=') introducing a declaration
	ItemEOF
	ItemField      // alphanumeric identifier starting with '.'
	ItemIdentifier // alphanumeric identifier not starting with '.'
	ItemLeftDelim  // left action delimiter
	ItemLeftParen  // '(' inside action
	ItemNumber     // simple number
	ItemPipe       // pipe symbol
	ItemRawString  // raw quoted string (includes quotes)
	ItemRightDelim // right action delimiter
	ItemRightParen // ')' inside action
	ItemSpace      // run of spaces separating arguments
	ItemString     // quoted string (includes quotes)
	ItemText       // plain text
	ItemVariable   // variable starting with '$', such as '$' or '$hello'
	// Keywords appear after all the rest.
	ItemKeyword  // used only to delimit the keywords
	ItemBlock    // block keyword
	ItemDot      // the cursor, spelled '.'
	ItemDefine   // define keyword
	ItemElse     // else keyword
	ItemEnd      // end keyword
	ItemIf       // if keyword
	ItemNil      // the untyped nil constant, easiest to treat as a keyword
	ItemRange    // range keyword
	ItemTemplate // template keyword
	ItemWith     // with keyword
)

var key = map[string]ItemType{
	".":        ItemDot,
	"block":    ItemBlock,
	"define":   ItemDefine,
	"else":     ItemElse,
	"end":      ItemEnd,
	"if":       ItemIf,
	"range":    ItemRange,
	"nil":      ItemNil,
	"template": ItemTemplate,
	"with":     ItemWith,
}

// Item is one token returned from the lexer.
type Item struct {
	Typ  ItemType // the type of this item
	Pos  int      // the starting byte offset of this item in the input
	Val  string   // the literal text of this item
	Line int      // the line number at the start of this item
}

func (i Item) String() string {
	switch {
	case i.Typ == ItemEOF:
		return "EOF"
	case i.Typ == ItemError:
		return i.Val
	case i.Typ > ItemKeyword:
		return fmt.Sprintf("<%s>", i.Val)
	case len(i.Val) > 10:
		return fmt.Sprintf("%.10q...", i.Val)
	}
	return fmt.Sprintf("%q", i.Val)
}
