// Package biz 提供文献问答服务的业务逻辑层。
//
// 该包实现一个固定的五阶段无状态流水线：
//   - DocumentSource: 负责文档获取与结构化解析（阶段 1）
//   - Analyzer: 负责问题理解与关键词提取（阶段 2）
//   - Chunker + Retriever: 负责分块、嵌入与相关段落检索（阶段 3）
//   - EvidenceFilter: 负责基于 LLM 的证据筛选（阶段 4）
//   - AnswerStreamer: 负责流式答案生成（阶段 5）
//   - Service: 组合以上组件，在阶段超时、降级回退与
//     心跳保活机制下驱动整个流水线
//
// 所有状态均为单请求生命周期；跨请求只共享只读配置。
package biz
