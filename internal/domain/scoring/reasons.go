package scoring

// Category is the risk bucket a block lands in.
type Category string

const (
	CategoryHigh   Category = "high"
	CategoryMedium Category = "medium"
	CategoryLow    Category = "low"
	CategoryNormal Category = "normal"
)

// Reasons holds the canned human readable explanations per category.
// "normal" is only reachable through classifier scoring.
var Reasons = map[Category][]string{
	CategoryHigh: {
		"Block corruption detected - checksum mismatch",
		"Unusual replication pattern from multiple sources",
		"Failed block allocation - potential storage issue",
		"Suspicious access pattern detected",
		"Block size anomaly - significantly larger than expected",
		"Multiple failed read attempts on block",
		"Unauthorized access attempt detected",
		"Block metadata inconsistency found",
	},
	CategoryMedium: {
		"Higher than normal replication requests",
		"Block corruption detected - checksum mismatch",
		"Unusual replication pattern from multiple sources",
		"Failed block allocation - potential storage issue",
		"Suspicious access pattern detected",
		"Block size anomaly - significantly larger than expected",
		"Multiple failed read attempts on block",
		"Unauthorized access attempt detected",
		"Block metadata inconsistency found",
	},
	CategoryLow: {
		"Higher than normal replication requests",
		"Block access from unusual IP range",
		"Delayed block allocation response",
		"Non-standard block naming pattern",
		"Elevated error rate for this block",
		"Unusual timestamp pattern in block operations",
		"Block size slightly above normal threshold",
		"Minor metadata validation warnings",
	},
	CategoryNormal: {
		"Normal block operation",
		"Standard replication pattern",
		"Regular block allocation",
		"Typical access pattern",
		"Normal block size and metadata",
		"Standard HDFS operation",
		"Regular data node communication",
		"Normal file system activity",
	},
}

// Suffixes appended when the content references a block id.
const (
	suffixImmediate  = " - Block %s requires immediate attention"
	suffixConcerning = " - Block %s shows concerning patterns"
)
