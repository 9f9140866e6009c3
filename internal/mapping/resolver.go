// Package mapping 语义映射解析器
//
// 为缺少语义映射的字段名逐个走优先级查找链：
//
//	UNRESOLVED → CACHE_HIT | LOCAL_SEARCH | REMOTE_SEARCH | MANUAL → RESOLVED
//
// 解析器不直接阻塞在终端上：每个需要人工选择的点都通过 Prompter 接口
// 挂起并等待调用方应答，因此同一套状态机既可以接交互终端，也可以在
// 测试里由脚本化应答驱动。解析过程不持有任何存储事务。
package mapping

import (
	"context"

	"go.uber.org/zap"

	"github.com/Bluer01/COPH/internal/models"
	"github.com/Bluer01/COPH/internal/ontology"
)

// Strategy 未命中缓存字段的解析策略
type Strategy int

const (
	// StrategyLocal 本地本体库检索
	StrategyLocal Strategy = iota + 1
	// StrategyRemote 远程查找服务检索
	StrategyRemote
	// StrategyManual 人工直接录入
	StrategyManual
)

// Status 字段最终的解析途径
type Status string

const (
	StatusCache  Status = "cache"
	StatusLocal  Status = "local"
	StatusRemote Status = "remote"
	StatusManual Status = "manual"
)

// Resolution 单个字段的解析结果
type Resolution struct {
	Field   string
	Mapping models.FieldMapping
	Via     Status
}

// Prompter 挂起/恢复协议：解析器产出选择请求，调用方给出应答
type Prompter interface {
	// SelectKeyFields 从可用字段名中挑选需要映射的关键字段
	SelectKeyFields(fields []string) ([]string, error)
	// ChooseStrategy 为未命中缓存的字段选择一种解析策略（整组一次）
	ChooseStrategy(unmapped []string) (Strategy, error)
	// RefineQuery 字段级检索词微调；返回空串表示直接用字段名
	RefineQuery(field string) (string, error)
	// ChooseTerm 从本地候选中选择；ok=false 表示全部放弃
	ChooseTerm(field string, candidates []models.OntologyTerm) (choice int, ok bool, err error)
	// RemoteOptions 远程检索的字段级选项（精确匹配、查询字段）
	RemoteOptions(field string) (ontology.SearchOptions, error)
	// ChooseResult 从远程候选中选择；ok=false 表示全部放弃
	ChooseResult(field string, results []ontology.Result) (choice int, ok bool, err error)
	// ManualEntry 人工录入 label/IRI
	ManualEntry(field string) (label, iri string, err error)
	// ConfirmManual 人工录入的确认；false 触发重新录入
	ConfirmManual(field, label, iri string) (bool, error)
}

// MappingStore 已持久化映射的读取能力
type MappingStore interface {
	GetMappings(ctx context.Context, device string) (map[string]models.FieldMapping, error)
}

// LocalSearcher 本地本体库能力
type LocalSearcher interface {
	SearchTerms(ctx context.Context, query string) ([]models.OntologyTerm, error)
	HasLabel(ctx context.Context, label string) (bool, error)
	RegisterPlaceholder(ctx context.Context, label, iri string) error
}

// RemoteSearcher 远程查找服务能力
type RemoteSearcher interface {
	Search(ctx context.Context, query string, opts ontology.SearchOptions) ([]ontology.Result, error)
}

// Resolver 语义映射解析器
type Resolver struct {
	store    MappingStore
	local    LocalSearcher
	remote   RemoteSearcher
	prompter Prompter
	logger   *zap.Logger
}

// NewResolver 创建解析器
func NewResolver(store MappingStore, local LocalSearcher, remote RemoteSearcher,
	prompter Prompter, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:    store,
		local:    local,
		remote:   remote,
		prompter: prompter,
		logger:   logger,
	}
}

// Resolve 解析一个设备的关键字段映射
//
// 命中缓存的字段立即解析，不触发任何检索；其余字段按选定策略逐个解析。
// 返回的结果由外部合并持久化。
func (r *Resolver) Resolve(ctx context.Context, device string, fields []string) ([]Resolution, error) {
	keys, err := r.prompter.SelectKeyFields(fields)
	if err != nil {
		return nil, err
	}

	cached, err := r.store.GetMappings(ctx, device)
	if err != nil {
		return nil, err
	}

	var resolutions []Resolution
	var unmapped []string
	for _, field := range keys {
		if m, ok := cached[field]; ok {
			resolutions = append(resolutions, Resolution{Field: field, Mapping: m, Via: StatusCache})
			continue
		}
		unmapped = append(unmapped, field)
	}

	if len(unmapped) == 0 {
		return resolutions, nil
	}

	strategy, err := r.prompter.ChooseStrategy(unmapped)
	if err != nil {
		return nil, err
	}

	for _, field := range unmapped {
		var res *Resolution
		switch strategy {
		case StrategyLocal:
			res, err = r.resolveLocal(ctx, field)
		case StrategyRemote:
			res, err = r.resolveRemote(ctx, field)
		default:
			res, err = r.resolveManual(field)
		}
		if err != nil {
			return nil, err
		}
		if res == nil {
			// 操作者放弃了所有候选：字段保持未解析
			r.logger.Info("Field left unresolved", zap.String("field", field))
			continue
		}
		resolutions = append(resolutions, *res)
	}

	return resolutions, nil
}

// resolveLocal 本地本体库检索；零候选时回退人工录入
func (r *Resolver) resolveLocal(ctx context.Context, field string) (*Resolution, error) {
	query, err := r.prompter.RefineQuery(field)
	if err != nil {
		return nil, err
	}
	if query == "" {
		query = field
	}

	terms, err := r.local.SearchTerms(ctx, query)
	if err != nil {
		r.logger.Warn("Local ontology search failed", zap.String("field", field), zap.Error(err))
		terms = nil
	}
	if len(terms) == 0 {
		return r.resolveManual(field)
	}

	choice, ok, err := r.prompter.ChooseTerm(field, terms)
	if err != nil {
		return nil, err
	}
	if !ok || choice < 0 || choice >= len(terms) {
		return nil, nil
	}

	term := terms[choice]
	return &Resolution{
		Field:   field,
		Mapping: models.FieldMapping{Label: term.Label, IRI: term.IRI},
		Via:     StatusLocal,
	}, nil
}

// resolveRemote 远程查找服务检索
//
// 远程调用失败或操作者未选择任何结果时回退人工录入，绝不让远端故障
// 中断整个映射会话。选中的术语若本地缺失，登记为占位类。
func (r *Resolver) resolveRemote(ctx context.Context, field string) (*Resolution, error) {
	query, err := r.prompter.RefineQuery(field)
	if err != nil {
		return nil, err
	}
	if query == "" {
		query = field
	}

	opts, err := r.prompter.RemoteOptions(field)
	if err != nil {
		return nil, err
	}

	results, searchErr := r.remote.Search(ctx, query, opts)
	if searchErr != nil {
		r.logger.Warn("Remote term search failed, falling back to manual entry",
			zap.String("field", field),
			zap.Error(searchErr),
		)
		return r.resolveManual(field)
	}
	if len(results) == 0 {
		return r.resolveManual(field)
	}

	choice, ok, err := r.prompter.ChooseResult(field, results)
	if err != nil {
		return nil, err
	}
	if !ok || choice < 0 || choice >= len(results) {
		return r.resolveManual(field)
	}

	selected := results[choice]
	exists, err := r.local.HasLabel(ctx, selected.Label)
	if err != nil {
		r.logger.Warn("Failed to check local ontology for selected term", zap.Error(err))
	} else if !exists {
		if err := r.local.RegisterPlaceholder(ctx, selected.Label, selected.IRI); err != nil {
			r.logger.Warn("Failed to register placeholder term", zap.Error(err))
		}
	}

	return &Resolution{
		Field:   field,
		Mapping: models.FieldMapping{Label: selected.Label, IRI: selected.IRI},
		Via:     StatusRemote,
	}, nil
}

// resolveManual 人工录入，确认通过才接受
func (r *Resolver) resolveManual(field string) (*Resolution, error) {
	for {
		label, iri, err := r.prompter.ManualEntry(field)
		if err != nil {
			return nil, err
		}

		confirmed, err := r.prompter.ConfirmManual(field, label, iri)
		if err != nil {
			return nil, err
		}
		if confirmed {
			return &Resolution{
				Field:   field,
				Mapping: models.FieldMapping{Label: label, IRI: iri},
				Via:     StatusManual,
			}, nil
		}
	}
}

// Merged 把解析结果合并为 字段 → 映射 的 map（交给存储持久化）
func Merged(resolutions []Resolution) map[string]models.FieldMapping {
	result := make(map[string]models.FieldMapping, len(resolutions))
	for _, r := range resolutions {
		result[r.Field] = r.Mapping
	}
	return result
}
