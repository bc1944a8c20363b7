package emailai

import (
	"context"
	"errors"
	"time"

	"crmbackend/internal/audit"
	"crmbackend/internal/config"
	"crmbackend/internal/gates"
	"crmbackend/internal/logger"
	"crmbackend/internal/metrics"
	"crmbackend/pkg/aiinterface"

	"go.uber.org/zap"
)

// Service 邮件内容生成编排服务
//
// 每个能力一个方法，统一骨架：构建提示词 → 开关检查 → 带重试的模型
// 调用与模式校验 → 安全分类 → 约束校验 → 返回。无论成功失败，
// 每次顶层调用精确写入一条审计记录。服务自身无状态，可并发调用。
type Service struct {
	enforcer   gates.Enforcer
	client     aiinterface.ModelClient
	auditor    audit.Recorder
	classifier Classifier
	cfg        *config.Config
}

// NewService 创建生成编排服务；所有依赖显式注入，便于用伪实现做单元测试
func NewService(enforcer gates.Enforcer, client aiinterface.ModelClient, auditor audit.Recorder, classifier Classifier, cfg *config.Config) *Service {
	if classifier == nil {
		classifier = NewHeuristicClassifier(cfg.EmailAI.SafetyThreshold)
	}
	return &Service{
		enforcer:   enforcer,
		client:     client,
		auditor:    auditor,
		classifier: classifier,
		cfg:        cfg,
	}
}

// GenerateSubject 生成邮件主题
func (s *Service) GenerateSubject(ctx context.Context, subjectCtx *SubjectContext, opts GenerationOptions) (result *SubjectResult, err error) {
	model := s.cfg.ModelFor(string(CapabilitySubject))
	prompt := buildSubjectPrompt(subjectCtx, s.cfg.EmailAI.MaxSubjectLength)

	var rawResponse string
	defer s.auditCall(ctx, CapabilitySubject, opts, model, prompt, &rawResponse, time.Now(), &err)

	if err = s.enforce(ctx, CapabilitySubject, opts); err != nil {
		return nil, err
	}

	out, callErr := callWithRetry(ctx, s, opts, CapabilitySubject, func(ctx context.Context) (*SubjectResult, error) {
		resp, err := s.chat(ctx, model, prompt, opts, CapabilitySubject, true)
		if err != nil {
			return nil, err
		}
		rawResponse = resp.Content
		return parseSubjectResult(resp.Content, s.cfg.EmailAI.MaxSubjectLength)
	})
	if callErr != nil {
		err = s.classifyError(CapabilitySubject, callErr)
		return nil, err
	}

	// 主输出未过安全检查则中止；备选项逐条独立过滤，不安全的静默丢弃
	if assessment := s.classifier.Assess(out.Subject); !assessment.Safe {
		err = &SafetyViolationError{Field: "subject", Assessment: assessment}
		return nil, err
	}
	out.Alternatives = s.filterAlternatives(out.Alternatives)

	if err = ValidateConstraints(out.Subject, subjectCtx.MustInclude, subjectCtx.MustAvoid); err != nil {
		return nil, err
	}

	return out, nil
}

// GenerateBody 生成邮件正文
func (s *Service) GenerateBody(ctx context.Context, bodyCtx *BodyContext, opts GenerationOptions) (result *BodyResult, err error) {
	model := s.cfg.ModelFor(string(CapabilityBody))
	prompt := buildBodyPrompt(bodyCtx, s.cfg.EmailAI.MaxBodyLength)

	var rawResponse string
	defer s.auditCall(ctx, CapabilityBody, opts, model, prompt, &rawResponse, time.Now(), &err)

	if err = s.enforce(ctx, CapabilityBody, opts); err != nil {
		return nil, err
	}

	out, callErr := callWithRetry(ctx, s, opts, CapabilityBody, func(ctx context.Context) (*BodyResult, error) {
		resp, err := s.chat(ctx, model, prompt, opts, CapabilityBody, true)
		if err != nil {
			return nil, err
		}
		rawResponse = resp.Content
		return parseBodyResult(resp.Content, s.cfg.EmailAI.MaxBodyLength)
	})
	if callErr != nil {
		err = s.classifyError(CapabilityBody, callErr)
		return nil, err
	}

	assessment := s.classifier.Assess(out.Body)
	if !assessment.Safe {
		err = &SafetyViolationError{Field: "body", Assessment: assessment}
		return nil, err
	}
	// 模型自报的安全评分不可信，一律用分类器结果覆写
	out.SafetyScore = assessment.Score

	if err = ValidateConstraints(out.Body, bodyCtx.MustInclude, bodyCtx.MustAvoid); err != nil {
		return nil, err
	}

	return out, nil
}

// OptimizeTemplate 优化邮件模板
func (s *Service) OptimizeTemplate(ctx context.Context, tmplCtx *TemplateContext, opts GenerationOptions) (result *TemplateResult, err error) {
	model := s.cfg.ModelFor(string(CapabilityTemplate))
	prompt := buildTemplatePrompt(tmplCtx)

	var rawResponse string
	defer s.auditCall(ctx, CapabilityTemplate, opts, model, prompt, &rawResponse, time.Now(), &err)

	if err = s.enforce(ctx, CapabilityTemplate, opts); err != nil {
		return nil, err
	}

	out, callErr := callWithRetry(ctx, s, opts, CapabilityTemplate, func(ctx context.Context) (*TemplateResult, error) {
		resp, err := s.chat(ctx, model, prompt, opts, CapabilityTemplate, true)
		if err != nil {
			return nil, err
		}
		rawResponse = resp.Content
		return parseTemplateResult(resp.Content)
	})
	if callErr != nil {
		err = s.classifyError(CapabilityTemplate, callErr)
		return nil, err
	}

	if assessment := s.classifier.Assess(out.Template); !assessment.Safe {
		err = &SafetyViolationError{Field: "template", Assessment: assessment}
		return nil, err
	}

	return out, nil
}

// PersonalizeContent 针对收件人画像做个性化改写
//
// 该能力后处理自由文本而非结构化模式，改写结果的个性化评分
// 由评分器在本地计算。
func (s *Service) PersonalizeContent(ctx context.Context, persCtx *PersonalizeContext, opts GenerationOptions) (result *PersonalizeResult, err error) {
	model := s.cfg.ModelFor(string(CapabilityPersonalize))
	prompt := buildPersonalizePrompt(persCtx)

	var rawResponse string
	defer s.auditCall(ctx, CapabilityPersonalize, opts, model, prompt, &rawResponse, time.Now(), &err)

	if err = s.enforce(ctx, CapabilityPersonalize, opts); err != nil {
		return nil, err
	}

	type personalized struct {
		subject string
		body    string
	}
	out, callErr := callWithRetry(ctx, s, opts, CapabilityPersonalize, func(ctx context.Context) (*personalized, error) {
		resp, err := s.chat(ctx, model, prompt, opts, CapabilityPersonalize, false)
		if err != nil {
			return nil, err
		}
		rawResponse = resp.Content
		subject, body, err := parsePersonalizeText(resp.Content)
		if err != nil {
			return nil, err
		}
		return &personalized{subject: subject, body: body}, nil
	})
	if callErr != nil {
		err = s.classifyError(CapabilityPersonalize, callErr)
		return nil, err
	}

	if assessment := s.classifier.Assess(out.subject); !assessment.Safe {
		err = &SafetyViolationError{Field: "subject", Assessment: assessment}
		return nil, err
	}
	if assessment := s.classifier.Assess(out.body); !assessment.Safe {
		err = &SafetyViolationError{Field: "body", Assessment: assessment}
		return nil, err
	}

	return &PersonalizeResult{
		Subject:              out.subject,
		Body:                 out.body,
		PersonalizationScore: ScorePersonalization(out.body, persCtx.Profile),
	}, nil
}

// enforce 执行三级开关检查并记录拒绝指标
func (s *Service) enforce(ctx context.Context, capability Capability, opts GenerationOptions) error {
	if err := s.enforcer.Enforce(ctx, opts.Actor, GateFamilyKey, GateKeyFor(capability)); err != nil {
		metrics.ObserveGateDenial(string(capability))
		return err
	}
	return nil
}

// chat 发起一次模型调用
func (s *Service) chat(ctx context.Context, model, prompt string, opts GenerationOptions, capability Capability, jsonMode bool) (*aiinterface.ChatCompletionResponse, error) {
	req := &aiinterface.ChatCompletionRequest{
		Model: model,
		Messages: []aiinterface.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: opts.Temperature,
		MaxTokens:   resolveTokenBudget(opts.MaxTokens, capability),
		JSONMode:    jsonMode,
	}

	logger.WithContext(ctx).Debug("模型调用",
		zap.String("capability", string(capability)),
		zap.String("model", model),
		zap.Int("prompt_tokens_estimate", estimateTokens(prompt)),
	)

	return s.client.ChatCompletion(ctx, req)
}

// callWithRetry 按调用选项解析重试参数并执行
//
// 模式校验失败（ValidationError）发生在被重试的操作内部，执行器
// 无法将其与瞬时故障区分，因此同样会被重试——与原始行为保持一致，
// 见 DESIGN.md 中关于该取舍的记录。
func callWithRetry[T any](ctx context.Context, s *Service, opts GenerationOptions, capability Capability, op func(ctx context.Context) (T, error)) (T, error) {
	maxRetries := opts.MaxRetries
	switch {
	case maxRetries == 0:
		maxRetries = s.cfg.EmailAI.MaxRetries
	case maxRetries < 0:
		maxRetries = 0
	}
	baseDelay := time.Duration(s.cfg.EmailAI.BackoffBaseMs) * time.Millisecond

	return WithRetry(ctx, op, maxRetries, baseDelay)
}

// classifyError 将重试耗尽后的错误归类
//
// 模式校验错误与上下文取消原样返回，其余（传输/模型错误）包装为
// ProviderError 后返回。
func (s *Service) classifyError(capability Capability, err error) error {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &ProviderError{Capability: capability, Err: err}
}

// filterAlternatives 逐条过滤备选主题，丢弃不安全项
func (s *Service) filterAlternatives(alternatives []string) []string {
	if len(alternatives) == 0 {
		return alternatives
	}
	kept := make([]string, 0, len(alternatives))
	for _, alt := range alternatives {
		if s.classifier.Assess(alt).Safe {
			kept = append(kept, alt)
		}
	}
	return kept
}

// auditCall 在方法返回前写入唯一一条审计记录
//
// 使用 WithoutCancel 确保调用方超时/取消后审计仍可落库；
// 审计写入自身的失败由 Recorder 吞掉，绝不影响调用结果。
func (s *Service) auditCall(ctx context.Context, capability Capability, opts GenerationOptions, model, prompt string, rawResponse *string, start time.Time, errp *error) {
	err := *errp
	s.auditor.Record(context.WithoutCancel(ctx), audit.Entry{
		TenantID:   opts.Actor.TenantID,
		ActorID:    opts.Actor.UserID,
		Capability: string(capability),
		Model:      model,
		Prompt:     prompt,
		Response:   *rawResponse,
		Success:    err == nil,
		Duration:   time.Since(start),
		Err:        err,
	})
	metrics.ObserveGeneration(string(capability), err == nil, time.Since(start))
}
