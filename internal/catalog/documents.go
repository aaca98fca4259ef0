package catalog

const listContactsQuery = `query ListContacts {
  people {
    edges {
      node {
        id
        name { firstName lastName }
        email
        phone
        createdAt
      }
    }
  }
}`

const getContactQuery = `query GetContact($id: ID!) {
  person(id: $id) {
    id
    name { firstName lastName }
    email
    phone
    createdAt
    updatedAt
  }
}`

const createContactMutation = `mutation CreateContact($input: PersonInput!) {
  createPerson(input: $input) {
    id
    name { firstName lastName }
    email
  }
}`

const updateContactMutation = `mutation UpdateContact($id: ID!, $input: PersonInput!) {
  updatePerson(id: $id, input: $input) {
    id
    name { firstName lastName }
    email
  }
}`

const listCompaniesQuery = `query ListCompanies {
  companies {
    edges {
      node {
        id
        name
        domainName
        employees
        createdAt
      }
    }
  }
}`

const searchAllQuery = `query SearchAll($searchText: String!) {
  searchResults(searchText: $searchText) {
    ... on Person {
      id
      name { firstName lastName }
      email
    }
    ... on Company {
      id
      name
      domainName
    }
  }
}`
