package biz

import (
	"fmt"
	"strings"
)

// parsePrompt 文档结构化解析提示词。
func parsePrompt(text string, lang Language) string {
	if lang == LanguageZH {
		return fmt.Sprintf(`你是一位学术论文分析专家。你的任务是从以下文本中提取结构化信息。

请提取并组织以下信息为结构化格式：

1. **Title（标题）**: 论文标题
2. **Authors（作者）**: 作者列表
3. **Abstract（摘要）**: 摘要文本
4. **Keywords（关键词）**: 关键词（如果有）
5. **Introduction（引言）**: 引言部分的主要观点
6. **Methodology（方法论）**: 使用的方法/方法描述
7. **Results（结果）**: 主要结果和发现
8. **Conclusion（结论）**: 主要结论
9. **Core Contributions（核心贡献）**: 列出本文的 3-5 个主要贡献

文档文本：
%s

请以清晰、有组织的形式提供结构化信息。如果任何部分缺失，请注明"未找到"。

请使用中文回答。所有输出内容都必须是中文。`, text)
	}

	return fmt.Sprintf(`You are an expert at analyzing academic papers. Your task is to extract structured information from the following text.

Please extract and organize the following information in a structured format:

1. **Title**: The paper title
2. **Authors**: List of authors
3. **Abstract**: The abstract text
4. **Keywords**: Key terms (if available)
5. **Introduction**: Main points from the introduction section
6. **Methodology**: Description of the methods/approach used
7. **Results**: Key results and findings
8. **Conclusion**: Main conclusions
9. **Core Contributions**: List 3-5 main contributions of this paper

Document Text:
%s

Please provide the structured information in a clear, organized format. If any section is missing, indicate "Not found".`, text)
}

// analysisPrompt 问题理解与关键词提取提示词。
func analysisPrompt(query string, lang Language) string {
	if lang == LanguageZH {
		return fmt.Sprintf(`你是一位学术问答专家。请仔细分析以下用户问题，理解问题意图并提取关键信息。

用户问题：%s

请完成以下任务：
1. **问题类型识别**：判断问题类型（事实性、分析性、比较性、解释性等）
2. **关键词提取**：提取问题中的 3-5 个核心关键词或关键概念
3. **问题意图理解**：简要说明用户想要了解什么
4. **回答重点**：指出回答这个问题需要重点关注哪些方面

请以结构化的方式输出分析结果。`, query)
	}

	return fmt.Sprintf(`You are an expert in academic Q&A. Please carefully analyze the following user question, understand the question intent, and extract key information.

User Question: %s

Please complete the following tasks:
1. **Question Type Identification**: Determine the question type (factual, analytical, comparative, explanatory, etc.)
2. **Keyword Extraction**: Extract 3-5 core keywords or key concepts from the question
3. **Question Intent Understanding**: Briefly explain what the user wants to know
4. **Answer Focus**: Indicate which aspects should be emphasized when answering this question

Please output the analysis results in a structured format.`, query)
}

// filterPrompt 证据筛选提示词。
func filterPrompt(query string, passages []string, lang Language) string {
	var sb strings.Builder
	for i, passage := range passages {
		sb.WriteString(fmt.Sprintf("\n段落 %d:\n%s\n", i+1, passage))
	}
	passagesText := sb.String()

	if lang == LanguageZH {
		return fmt.Sprintf(`你是一位学术问答专家。请根据用户问题，从以下检索到的段落中筛选出最相关、最有价值的证据段落。

用户问题：%s

检索到的段落：
%s

请完成以下任务：
1. **相关性评分**：评估每个段落与问题的相关性（1-10 分）
2. **证据筛选**：选择最相关、最有价值的段落（最多选择 5-8 个）
3. **证据排序**：按照相关性从高到低排序
4. **简要说明**：简要说明为什么选择这些段落作为证据

请以结构化的方式输出筛选结果，包括选中的段落编号和简要说明。`, query, passagesText)
	}

	return fmt.Sprintf(`You are an expert in academic Q&A. Please filter the most relevant and valuable evidence passages from the following retrieved passages based on the user's question.

User Question: %s

Retrieved Passages:
%s

Please complete the following tasks:
1. **Relevance Scoring**: Evaluate the relevance of each passage to the question (1-10 points)
2. **Evidence Filtering**: Select the most relevant and valuable passages (select at most 5-8 passages)
3. **Evidence Ranking**: Rank the selected passages by relevance from high to low
4. **Brief Explanation**: Briefly explain why these passages are selected as evidence

Please output the filtering results in a structured format, including the selected passage numbers and brief explanations.`, query, passagesText)
}

// answerPrompt 答案生成提示词。
func answerPrompt(query string, doc *Document, evidence Evidence, lang Language) string {
	var info strings.Builder
	if doc.Title != "" {
		info.WriteString(fmt.Sprintf("标题: %s\n", doc.Title))
	}
	if doc.Abstract != "" {
		info.WriteString(fmt.Sprintf("摘要: %s\n", doc.Abstract))
	}
	if doc.Structured != "" {
		info.WriteString(doc.Structured)
		info.WriteString("\n")
	}

	var passages strings.Builder
	for i, passage := range evidence.Passages {
		passages.WriteString(fmt.Sprintf("\n证据段落 %d:\n%s\n", i+1, passage))
	}

	if lang == LanguageZH {
		return fmt.Sprintf(`你是一位学术问答专家。请基于以下论文信息和相关证据段落，回答用户的问题。

用户问题：%s

论文信息：
%s

相关证据段落：
%s

请生成一个详细、准确、结构化的答案，要求：
1. **准确性**：答案必须基于论文中的实际内容，不能编造信息
2. **完整性**：答案应该全面回答用户的问题，包括必要的细节和解释
3. **结构化**：使用 Markdown 格式，合理使用标题、列表等格式
4. **引用**：在答案中引用具体的证据段落（例如："根据段落1..."或"如段落2所示..."）
5. **清晰性**：答案应该清晰易懂，逻辑连贯

请直接开始回答，不要包含"根据"、"基于"等介绍性短语，也不要包含关于写作过程的元评论。`, query, info.String(), passages.String())
	}

	return fmt.Sprintf(`You are an expert in academic Q&A. Please answer the user's question based on the following paper information and relevant evidence passages.

User Question: %s

Paper Information:
%s

Relevant Evidence Passages:
%s

Please generate a detailed, accurate, and structured answer with the following requirements:
1. **Accuracy**: The answer must be based on the actual content in the paper, and cannot fabricate information
2. **Completeness**: The answer should comprehensively answer the user's question, including necessary details and explanations
3. **Structure**: Use Markdown format with appropriate headings, lists, etc.
4. **Citations**: Cite specific evidence passages in the answer (e.g., "According to Passage 1..." or "As shown in Passage 2...")
5. **Clarity**: The answer should be clear, understandable, and logically coherent

Please start answering directly, without introductory phrases like "Based on" or "According to", and without meta-commentary about the writing process.`, query, info.String(), passages.String())
}

// messages 是流式输出中按检测语言选用的文案模板。
type messages struct {
	Step1      string
	Step2      string
	Step3      string
	Step4      string
	Step5      string
	FinalTitle string

	ParseTimeout  string
	ParseFallback string
	EmptyAnswer   string

	errParse    string
	errAnalysis string
	errAnswer   string
	errTimeout  string
	errGeneral  string
}

func (m *messages) ErrParse(err error) string    { return fmt.Sprintf(m.errParse, err) }
func (m *messages) ErrAnalysis(err error) string { return fmt.Sprintf(m.errAnalysis, err) }
func (m *messages) ErrAnswer(err error) string   { return fmt.Sprintf(m.errAnswer, err) }
func (m *messages) ErrTimeout(seconds int) string {
	return fmt.Sprintf(m.errTimeout, seconds)
}
func (m *messages) ErrGeneral(err error) string { return fmt.Sprintf(m.errGeneral, err) }

var zhMessages = &messages{
	Step1:         "### 📄 步骤 1/5: PDF解析与结构化提取\n\n✅ 已完成\n\n",
	Step2:         "### ❓ 步骤 2/5: 问题理解与关键词提取\n\n✅ 已完成\n\n",
	Step3:         "### 🔍 步骤 3/5: 相关段落检索\n\n",
	Step4:         "### 📊 步骤 4/5: 上下文构建与证据筛选\n\n",
	Step5:         "### 📝 步骤 5/5: 答案生成\n\n",
	FinalTitle:    "## 📄 答案\n\n",
	ParseTimeout:  "⚠️ PDF解析超时，使用备用方法提取基本信息\n\n",
	ParseFallback: "基本信息提取完成\n\n",
	EmptyAnswer:   "生成的答案为空",
	errParse:      "## ❌ 错误\n\nPDF解析失败，无法继续: %v\n\n",
	errAnalysis:   "## ❌ 错误\n\n问题分析失败: %v\n\n",
	errAnswer:     "## ❌ 错误\n\n答案生成失败: %v\n\n",
	errTimeout:    "## ❌ 超时错误\n\n请求处理超过 %d 秒，已自动终止\n\n",
	errGeneral:    "## ❌ 错误\n\n程序执行失败: %v\n\n",
}

var enMessages = &messages{
	Step1:         "### 📄 Step 1/5: PDF Parsing and Structure Extraction\n\n✅ Completed\n\n",
	Step2:         "### ❓ Step 2/5: Question Understanding and Keyword Extraction\n\n✅ Completed\n\n",
	Step3:         "### 🔍 Step 3/5: Relevant Passage Retrieval\n\n",
	Step4:         "### 📊 Step 4/5: Context Building and Evidence Filtering\n\n",
	Step5:         "### 📝 Step 5/5: Answer Generation\n\n",
	FinalTitle:    "## 📄 Answer\n\n",
	ParseTimeout:  "⚠️ PDF parsing timeout, using fallback method to extract basic information\n\n",
	ParseFallback: "Basic information extraction completed\n\n",
	EmptyAnswer:   "generated answer is empty",
	errParse:      "## ❌ Error\n\nPDF parsing failed. Cannot continue: %v\n\n",
	errAnalysis:   "## ❌ Error\n\nQuestion analysis failed: %v\n\n",
	errAnswer:     "## ❌ Error\n\nAnswer generation failed: %v\n\n",
	errTimeout:    "## ❌ Timeout Error\n\nRequest processing exceeded %d seconds. Automatically terminated.\n\n",
	errGeneral:    "## ❌ Error\n\nProcess execution failed: %v\n\n",
}

// messagesFor 返回指定语言的文案模板。
func messagesFor(lang Language) *messages {
	if lang == LanguageZH {
		return zhMessages
	}
	return enMessages
}
