package queries

// The predicate tree is the store-agnostic candidate selection language. The
// gorm store compiles it to SQL, the in-memory store evaluates it directly.

type Op string

const (
	OpEq       = Op("eq")
	OpNe       = Op("ne")
	OpIn       = Op("in")
	OpNotIn    = Op("nin")
	OpLt       = Op("lt")
	OpGte      = Op("gte")
	OpLte      = Op("lte")
	OpExists   = Op("exists")
	OpNotExist = Op("not_exists")
	OpContains = Op("contains")
	OpSearch   = Op("search")
)

// Field names understood by post stores.
const (
	FieldID           = "id"
	FieldAuthorID     = "author_id"
	FieldCreatedAt    = "created_at"
	FieldVisibility   = "visibility"
	FieldStatus       = "status"
	FieldType         = "type"
	FieldParentPostID = "parent_post_id"
	FieldRepostOf     = "repost_of"
	FieldQuoteOf      = "quote_of"
	FieldLanguage     = "language"
	FieldContent      = "content"
	FieldHashtags     = "hashtags"
	FieldMedia        = "media"
	FieldImages       = "images"
	FieldVideo        = "video"
	FieldAttachments  = "attachments"
)

type Condition struct {
	Field string
	Op    Op
	Value any
}

// Node is an AND/OR tree over field conditions. A node carries exactly one of
// All, Any or Cond.
type Node struct {
	All  []Node
	Any  []Node
	Cond *Condition
}

func Eq(field string, value any) Node {
	return Node{Cond: &Condition{Field: field, Op: OpEq, Value: value}}
}

func Ne(field string, value any) Node {
	return Node{Cond: &Condition{Field: field, Op: OpNe, Value: value}}
}

func In(field string, values []string) Node {
	return Node{Cond: &Condition{Field: field, Op: OpIn, Value: values}}
}

func NotIn(field string, values []string) Node {
	return Node{Cond: &Condition{Field: field, Op: OpNotIn, Value: values}}
}

func Lt(field string, value any) Node {
	return Node{Cond: &Condition{Field: field, Op: OpLt, Value: value}}
}

func Gte(field string, value any) Node {
	return Node{Cond: &Condition{Field: field, Op: OpGte, Value: value}}
}

func Lte(field string, value any) Node {
	return Node{Cond: &Condition{Field: field, Op: OpLte, Value: value}}
}

func Exists(field string) Node {
	return Node{Cond: &Condition{Field: field, Op: OpExists}}
}

func NotExists(field string) Node {
	return Node{Cond: &Condition{Field: field, Op: OpNotExist}}
}

func Contains(field string, value string) Node {
	return Node{Cond: &Condition{Field: field, Op: OpContains, Value: value}}
}

func Search(field string, probe string) Node {
	return Node{Cond: &Condition{Field: field, Op: OpSearch, Value: probe}}
}

func And(nodes ...Node) Node {
	return Node{All: nodes}
}

func Or(nodes ...Node) Node {
	return Node{Any: nodes}
}

// Sort is the store-side ordering of the candidate fetch.
type Sort struct {
	Field string
	Desc  bool
}

func SortByIDDesc() Sort {
	return Sort{Field: FieldID, Desc: true}
}
