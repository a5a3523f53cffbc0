package categorizer

import (
	"strings"

	"github.com/ivanoskov/lazzyfinance/internal/model"
)

type keyword struct {
	word     string
	category model.Category
}

// Earnings words come first; the first match wins.
var keywords = []keyword{
	{"recebi", model.CategoryIncome},
	{"recebido", model.CategoryIncome},
	{"recebimento", model.CategoryIncome},
	{"ganhei", model.CategoryIncome},
	{"ganho", model.CategoryIncome},
	{"salario", model.CategoryIncome},
	{"salário", model.CategoryIncome},
	{"venda", model.CategoryIncome},
	{"vendi", model.CategoryIncome},
	{"pagamento", model.CategoryIncome},
	{"pagou", model.CategoryIncome},
	{"lucro", model.CategoryIncome},
	{"receita", model.CategoryIncome},
	{"renda", model.CategoryIncome},
	{"freela", model.CategoryIncome},
	{"paguei", model.CategoryTransport},

	{"alimentacao", model.CategoryFood},
	{"comida", model.CategoryFood},
	{"mercado", model.CategoryFood},
	{"restaurante", model.CategoryFood},
	{"padaria", model.CategoryFood},

	{"transporte", model.CategoryTransport},
	{"uber", model.CategoryTransport},
	{"taxi", model.CategoryTransport},
	{"gasolina", model.CategoryTransport},
	{"onibus", model.CategoryTransport},
	{"ônibus", model.CategoryTransport},
	{"metro", model.CategoryTransport},
	{"metrô", model.CategoryTransport},

	{"lazer", model.CategoryLeisure},
	{"cinema", model.CategoryLeisure},
	{"bar", model.CategoryLeisure},
	{"festa", model.CategoryLeisure},

	{"saude", model.CategoryHealth},
	{"saúde", model.CategoryHealth},
	{"medicamento", model.CategoryHealth},
	{"medico", model.CategoryHealth},
	{"médico", model.CategoryHealth},
	{"hospital", model.CategoryHealth},
	{"farmacia", model.CategoryHealth},
	{"farmácia", model.CategoryHealth},

	{"moradia", model.CategoryHousing},
	{"aluguel", model.CategoryHousing},
	{"alugueis", model.CategoryHousing},
	{"condominio", model.CategoryHousing},
	{"condomínio", model.CategoryHousing},
	{"conta", model.CategoryHousing},
	{"luz", model.CategoryHousing},
	{"energia", model.CategoryHousing},
	{"agua", model.CategoryHousing},
	{"água", model.CategoryHousing},
	{"gas", model.CategoryHousing},
	{"gás", model.CategoryHousing},
	{"internet", model.CategoryHousing},
	{"iptu", model.CategoryHousing},
	{"casa", model.CategoryHousing},
	{"apartamento", model.CategoryHousing},

	{"estudos", model.CategoryEducation},
	{"curso", model.CategoryEducation},
	{"livro", model.CategoryEducation},
	{"escola", model.CategoryEducation},

	{"trabalho", model.CategoryWork},
	{"material", model.CategoryWork},
	{"equipamento", model.CategoryWork},
	{"software", model.CategoryWork},
}

// InferCategory guesses a category from substrings of text, defaulting to
// LAZER.
func InferCategory(text string) model.Category {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lower, k.word) {
			return k.category
		}
	}
	return model.CategoryLeisure
}
