package xerrors

var (
	// ErrUnknownVersion 引用了从未创建过的版本号。
	ErrUnknownVersion = New(ErrNotFound, 404101, "unknown version", "version id was never created", nil)
	// ErrInvalidRange 区间非法 (lo > hi 或越界)。
	ErrInvalidRange = New(ErrInvalidArg, 400101, "invalid range", "range must satisfy 1 <= lo <= hi <= n", nil)
	// ErrOutOfRange 排名或下标超出结构当前大小。
	ErrOutOfRange = New(ErrInvalidArg, 400102, "index out of range", "k must be in [1, size]", nil)
	// ErrEmptyInput 初始数组为空。
	ErrEmptyInput = New(ErrInvalidArg, 400103, "empty input", "initial values must not be empty", nil)
	// ErrUnknownAggregator 不支持的聚合方式。
	ErrUnknownAggregator = New(ErrInvalidArg, 400104, "unknown aggregator", "supported: sum, min, max", nil)
	// ErrInvalidTree 外部树结构非法 (父节点越界或存在环)。
	ErrInvalidTree = New(ErrInvalidArg, 400105, "invalid tree", "parent array must describe a rooted forest", nil)
	// ErrArenaExhausted 节点池达到上限。
	ErrArenaExhausted = New(ErrLimitExceeded, 507101, "arena exhausted", "node arena reached its configured limit", nil)
	// ErrConsumed 节点的线段树已经被合并进父节点，不能再单独查询。
	ErrConsumed = New(ErrFailedPrecondition, 400106, "tree consumed", "tree was merged into its parent and is no longer addressable", nil)
	// ErrKindMismatch 对容器执行了不支持的操作。
	ErrKindMismatch = New(ErrFailedPrecondition, 400107, "container kind mismatch", "operation not supported by this container kind", nil)
	// ErrContainerNotFound 容器不存在。
	ErrContainerNotFound = New(ErrNotFound, 404102, "container not found", "no container with this id", nil)
	// ErrAuditFailed 结构自检失败，说明不变量被破坏。
	ErrAuditFailed = New(ErrInternal, 500101, "audit failed", "structural invariant violated", nil)
	// ErrSnapshotCorrupt 快照内容损坏或与结构类型不符。
	ErrSnapshotCorrupt = New(ErrInvalidArg, 400108, "snapshot corrupt", "snapshot image cannot be restored", nil)
	// ErrContainerLimit 容器数量达到上限。
	ErrContainerLimit = New(ErrLimitExceeded, 507102, "container limit reached", "max_containers reached, drop unused containers first", nil)
	// ErrTooManyPositions 初始数组或外部树超过允许的规模。
	ErrTooManyPositions = New(ErrInvalidArg, 400109, "too many positions", "input exceeds max_positions", nil)
	// ErrNameTaken 容器名已被占用。
	ErrNameTaken = New(ErrAlreadyExists, 409101, "container name taken", "container names must be unique", nil)
	// ErrNoSnapshotStore 未配置快照存储。
	ErrNoSnapshotStore = New(ErrFailedPrecondition, 400110, "snapshot store disabled", "configure snapshot.backend to save or load", nil)
)
